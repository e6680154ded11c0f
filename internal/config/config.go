// Package config loads launch predictor settings from a YAML file with
// LAUNCHPREDICT_ environment overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// EnvPrefix is prepended to every environment override, e.g.
// LAUNCHPREDICT_HISTORY_CAPACITY.
const EnvPrefix = "LAUNCHPREDICT"

// Config holds all launch predictor settings.
type Config struct {
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Predictor PredictorConfig `mapstructure:"predictor" yaml:"predictor"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Bridge    BridgeConfig    `mapstructure:"bridge" yaml:"bridge"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type PredictorConfig struct {
	Seed     int64 `mapstructure:"seed" yaml:"seed"`
	MaxDepth int   `mapstructure:"max_depth" yaml:"max_depth"`
}

// StorageConfig selects the occurrence table backend. Path is used by csv and
// sqlite, DSN by postgres.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// JournalConfig enables the SQLite cycle journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type SessionConfig struct {
	UnknownPolicy string `mapstructure:"unknown_policy" yaml:"unknown_policy"`
	Profile       string `mapstructure:"profile" yaml:"profile"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

type BridgeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// MetricsConfig serves /metrics on Addr when set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// #region defaults

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		History:   HistoryConfig{Capacity: 10},
		Predictor: PredictorConfig{Seed: 42, MaxDepth: 0},
		Storage:   StorageConfig{Backend: string(occurrence.BackendCSV), Path: "occurrences.csv"},
		Session:   SessionConfig{UnknownPolicy: string(session.PolicyWarn), Profile: occurrence.Admin.String()},
		Logging:   LoggingConfig{Level: "info"},
		Bridge:    BridgeConfig{Addr: "localhost:50061"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("history.capacity", d.History.Capacity)
	v.SetDefault("predictor.seed", d.Predictor.Seed)
	v.SetDefault("predictor.max_depth", d.Predictor.MaxDepth)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("session.unknown_policy", d.Session.UnknownPolicy)
	v.SetDefault("session.profile", d.Session.Profile)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("bridge.addr", d.Bridge.Addr)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// #endregion defaults

// #region load

// DefaultPath returns ~/.launchpredict/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".launchpredict", "config.yaml"), nil
}

// Load reads the default config file, creating it first if missing.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from path and merges environment variables.
// If the file doesn't exist, it is created with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: LAUNCHPREDICT_STORAGE_BACKEND=sqlite
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Journal.Path = expandPath(cfg.Journal.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveToPath writes the configuration to path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// #endregion load

// #region validate

// Validate checks value ranges and enum labels.
func (c *Config) Validate() error {
	if c.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be at least 1, got %d", c.History.Capacity)
	}
	if c.Predictor.MaxDepth < 0 {
		return fmt.Errorf("predictor.max_depth cannot be negative")
	}

	backend, err := occurrence.ParseBackend(c.Storage.Backend)
	if err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	switch backend {
	case occurrence.BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path cannot be empty for the %s backend", backend)
		}
	}

	if _, err := session.ParsePolicy(c.Session.UnknownPolicy); err != nil {
		return fmt.Errorf("session.unknown_policy: %w", err)
	}
	if _, err := occurrence.ParseProfile(c.Session.Profile); err != nil {
		return fmt.Errorf("session.profile: %w", err)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// Location returns the store location for the configured backend.
func (c *Config) Location() string {
	if backend, _ := occurrence.ParseBackend(c.Storage.Backend); backend == occurrence.BackendPostgres {
		return c.Storage.DSN
	}
	return c.Storage.Path
}

// SetLocation stores loc where Location reads it for the configured backend:
// the DSN for postgres, the path otherwise.
func (c *Config) SetLocation(loc string) {
	if backend, _ := occurrence.ParseBackend(c.Storage.Backend); backend == occurrence.BackendPostgres {
		c.Storage.DSN = loc
		return
	}
	c.Storage.Path = loc
}

// #endregion validate

// #region logger

// NewLogger builds a zerolog logger from the logging section: JSON lines when
// JSON is set, otherwise a console writer.
func (c LoggingConfig) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	if !c.JSON {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// #endregion logger

// #region helpers

// writeConfigFile uses yaml.v3 directly so the yaml tags drive key names.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// #endregion helpers
