package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig
	History HistoryConfig
	Log     LogConfig
	UI      UIConfig
}

// ServerConfig holds workspace backend settings.
type ServerConfig struct {
	URL     string
	Timeout time.Duration
}

// HistoryConfig holds the local sqlite archive settings.
type HistoryConfig struct {
	Path           string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	Path  string
	Debug bool
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Theme string
}

// Load reads configuration from file and env. Env var overrides use prefix QUILL_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.timeout", "90s")
	v.SetDefault("history.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "quill", "history.db"))
	v.SetDefault("history.migrations_path", "internal/history/migrations")
	v.SetDefault("log.path", filepath.Join(os.Getenv("HOME"), ".local", "state", "quill", "quill.log"))
	v.SetDefault("log.debug", false)
	v.SetDefault("ui.theme", "dark")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("QUILL_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "quill"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("QUILL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed. Used by the TUI settings surface for non-sensitive preferences;
// the bearer token never goes here.
func Save(cfg Config) error {
	path := os.Getenv("QUILL_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "quill", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.timeout", cfg.Server.Timeout.String())
	v.Set("history.path", cfg.History.Path)
	v.Set("history.migrations_path", cfg.History.MigrationsPath)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.debug", cfg.Log.Debug)
	v.Set("ui.theme", cfg.UI.Theme)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
