package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Backend     BackendConfig     `toml:"backend"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
	Preferences PreferencesConfig `toml:"preferences"`
}

// ServerConfig holds the server settings
type ServerConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	EnableCORS         bool   `toml:"enable_cors"`
	AllowedOrigins     string `toml:"allowed_origins"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"` // 0 = disabled
	LogMessages        bool   `toml:"log_messages"`
	Verbose            bool   `toml:"verbose"`
}

// BackendConfig holds the Ollama server settings
type BackendConfig struct {
	Host              string   `toml:"host"` // Used verbatim when set, otherwise derived from the local interfaces
	Port              int      `toml:"port"` // Appended to a derived host
	CheckTimeout      Duration `toml:"check_timeout"`
	StreamIdleTimeout Duration `toml:"stream_idle_timeout"` // 0 = no idle timeout
}

// DatabaseConfig holds the request journal settings
type DatabaseConfig struct {
	Enabled         bool   `toml:"enabled"`
	Path            string `toml:"path"`
	MaxRequests     int    `toml:"max_requests"`     // Maximum number of requests to keep (0 = unlimited)
	CleanupInterval int    `toml:"cleanup_interval"` // Cleanup interval in minutes (0 = disabled)
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// PreferencesConfig holds defaults for the UI preference stores
type PreferencesConfig struct {
	DarkMode      bool   `toml:"dark_mode"`
	SelectedModel string `toml:"selected_model"`
}

// Duration lets TOML files use strings such as "5s" or "5m"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			EnableCORS:     true,
			AllowedOrigins: "*",
		},
		Backend: BackendConfig{
			Port:              11434,
			CheckTimeout:      Duration{5 * time.Second},
			StreamIdleTimeout: Duration{5 * time.Minute},
		},
		Database: DatabaseConfig{
			Enabled:         true,
			Path:            "./ollama_relay.db",
			MaxRequests:     100,
			CleanupInterval: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Preferences: PreferencesConfig{
			SelectedModel: "llama3.2:latest",
		},
	}
}

// Load reads and parses the configuration file, then applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		metadata, err := toml.DecodeFile(path, config)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read/parse config file: %w", err)
		}

		// Fail on unknown keys
		if err == nil && len(metadata.Undecoded()) > 0 {
			return nil, fmt.Errorf("unknown keys in config file: %v", metadata.Undecoded())
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %s", v)
		}
		config.Server.Port = port
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		config.Backend.Host = v
	}
	if v := os.Getenv("OLLAMA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OLLAMA_PORT: %s", v)
		}
		config.Backend.Port = port
	}
	if v := os.Getenv("RELAY_DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("invalid backend.port: %d", c.Backend.Port)
	}
	if c.Backend.CheckTimeout.Duration <= 0 {
		return fmt.Errorf("backend.check_timeout must be positive")
	}
	if c.Backend.StreamIdleTimeout.Duration < 0 {
		return fmt.Errorf("backend.stream_idle_timeout must not be negative")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	if c.Database.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when the journal is enabled")
	}
	return nil
}
