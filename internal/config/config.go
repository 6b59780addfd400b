package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Timeline TimelineConfig `mapstructure:"timeline"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type ServerConfig struct {
	// BaseURL is the server's API root up to and including the trailing
	// slash, e.g. "https://gs.example.net/".
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

type TimelineConfig struct {
	// PageSize is the per-page notice count requested from the server. The
	// reached-start heuristic compares returned counts against it.
	PageSize int `mapstructure:"page_size"`
	// MaxPages bounds how many pages one load-more job may walk.
	MaxPages int `mapstructure:"max_pages"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(homeDir, ".weft", "weft.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(homeDir, ".weft", "index.bleve"),
		},
		Server: ServerConfig{
			BaseURL:     "",
			HTTPTimeout: 30 * time.Second,
			UserAgent:   "weft/1.0 (https://github.com/weftfeed/weft)",
		},
		Timeline: TimelineConfig{
			PageSize: 50,
			MaxPages: 1,
		},
		Log: LogConfig{
			Level: "off",
			Path:  filepath.Join(homeDir, ".weft", "weft.log"),
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("server", cfg.Server)
	v.SetDefault("timeline", cfg.Timeline)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "weft")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WEFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&loaded)
	return &loaded, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

// Save writes a config file. Durations are written as strings so the TOML
// stays hand-editable.
func Save(cfg *Config, path string) error {
	out := map[string]any{
		"database": map[string]any{
			"path":         cfg.Database.Path,
			"timeout":      cfg.Database.Timeout.String(),
			"search_index": cfg.Database.SearchIndex,
		},
		"server": map[string]any{
			"base_url":     cfg.Server.BaseURL,
			"http_timeout": cfg.Server.HTTPTimeout.String(),
			"user_agent":   cfg.Server.UserAgent,
			"username":     cfg.Server.Username,
			"password":     cfg.Server.Password,
		},
		"timeline": map[string]any{
			"page_size": cfg.Timeline.PageSize,
			"max_pages": cfg.Timeline.MaxPages,
		},
		"log": map[string]any{
			"level": cfg.Log.Level,
			"path":  cfg.Log.Path,
		},
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
