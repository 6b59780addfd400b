package config

import "time"

// TestConfig returns a config suitable for testing.
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    "",
			Timeout: 1 * time.Second,
		},
		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1/",
			HTTPTimeout: 5 * time.Second,
			UserAgent:   "weft-test/1.0",
		},
		Timeline: TimelineConfig{
			PageSize: 50,
			MaxPages: 1,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}
