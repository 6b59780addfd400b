package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Timeout != 1*time.Second {
		t.Errorf("Database.Timeout = %v, want 1s", cfg.Database.Timeout)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should not be empty")
	}
	if cfg.Database.SearchIndex == "" {
		t.Error("Database.SearchIndex should not be empty")
	}

	if cfg.Server.HTTPTimeout != 30*time.Second {
		t.Errorf("Server.HTTPTimeout = %v, want 30s", cfg.Server.HTTPTimeout)
	}
	if cfg.Server.UserAgent == "" {
		t.Error("Server.UserAgent should not be empty")
	}
	if cfg.Server.BaseURL != "" {
		t.Error("Server.BaseURL should be empty until configured")
	}

	if cfg.Timeline.PageSize != 50 {
		t.Errorf("Timeline.PageSize = %d, want 50", cfg.Timeline.PageSize)
	}
	if cfg.Timeline.MaxPages != 1 {
		t.Errorf("Timeline.MaxPages = %d, want 1", cfg.Timeline.MaxPages)
	}

	if cfg.Log.Level != "off" {
		t.Errorf("Log.Level = %q, want off", cfg.Log.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `[server]
base_url = "https://gs.example.net/"
user_agent = "custom/2.0"

[timeline]
page_size = 20
max_pages = 3

[log]
level = "debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.BaseURL != "https://gs.example.net/" {
		t.Errorf("Server.BaseURL = %q, want https://gs.example.net/", cfg.Server.BaseURL)
	}
	if cfg.Server.UserAgent != "custom/2.0" {
		t.Errorf("Server.UserAgent = %q, want custom/2.0", cfg.Server.UserAgent)
	}
	if cfg.Timeline.PageSize != 20 {
		t.Errorf("Timeline.PageSize = %d, want 20", cfg.Timeline.PageSize)
	}
	if cfg.Timeline.MaxPages != 3 {
		t.Errorf("Timeline.MaxPages = %d, want 3", cfg.Timeline.MaxPages)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}

	// Untouched sections keep their defaults.
	if cfg.Database.Timeout != 1*time.Second {
		t.Errorf("Database.Timeout = %v, want default 1s", cfg.Database.Timeout)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.toml")

	cfg := TestConfig()
	cfg.Server.BaseURL = "https://gs.example.net/"
	cfg.Timeline.PageSize = 25

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `base_url = 'https://gs.example.net/'`) &&
		!strings.Contains(string(data), `base_url = "https://gs.example.net/"`) {
		t.Errorf("saved config missing base_url, got:\n%s", data)
	}

	reloaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() after Save() error: %v", err)
	}
	if reloaded.Server.BaseURL != cfg.Server.BaseURL {
		t.Errorf("reloaded BaseURL = %q, want %q", reloaded.Server.BaseURL, cfg.Server.BaseURL)
	}
	if reloaded.Timeline.PageSize != 25 {
		t.Errorf("reloaded PageSize = %d, want 25", reloaded.Timeline.PageSize)
	}
	if reloaded.Server.HTTPTimeout != cfg.Server.HTTPTimeout {
		t.Errorf("reloaded HTTPTimeout = %v, want %v", reloaded.Server.HTTPTimeout, cfg.Server.HTTPTimeout)
	}
}

func TestGenerateDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	if err := GenerateDefaultConfig(configPath); err != nil {
		t.Fatalf("GenerateDefaultConfig() error: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, section := range []string{"[database]", "[server]", "[timeline]", "[log]"} {
		if !strings.Contains(string(data), section) {
			t.Errorf("generated config missing section %s", section)
		}
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got := expandPath("~/weft/weft.db")
	want := filepath.Join(homeDir, "weft", "weft.db")
	if got != want {
		t.Errorf("expandPath() = %q, want %q", got, want)
	}

	if got := expandPath("/absolute/path.db"); got != "/absolute/path.db" {
		t.Errorf("expandPath() changed absolute path to %q", got)
	}
}
