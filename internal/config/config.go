// Package config loads teasync configuration from a YAML file and
// TEASYNC_-prefixed environment variables. Environment variables take
// precedence over the file; both fall back to defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of a device agent.
type Config struct {
	// DataDir is the root directory for all local state.
	DataDir string `mapstructure:"data_dir"`

	// PlantationID scopes every record this device creates.
	PlantationID string `mapstructure:"plantation_id"`

	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// RemoteConfig locates and authenticates against the remote backend.
type RemoteConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`

	// HealthURL is the base URL probed for reachability. Empty derives it
	// from Endpoint.
	HealthURL string `mapstructure:"health_url"`
	// HealthTimeout bounds one reachability probe.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// SyncConfig tunes the background sync schedule.
type SyncConfig struct {
	// Interval is the spacing between background sync runs.
	Interval time.Duration `mapstructure:"interval"`
	// ExecutionBudget bounds one background run.
	ExecutionBudget time.Duration `mapstructure:"execution_budget"`
	// StartOnBoot runs a sync pass immediately on daemon start.
	StartOnBoot bool `mapstructure:"start_on_boot"`
	// RequiredNetwork is the connectivity class runs require: any,
	// unmetered, or none.
	RequiredNetwork string `mapstructure:"required_network"`
	RequiresCharging bool  `mapstructure:"requires_charging"`
	RequiresIdle     bool  `mapstructure:"requires_idle"`
}

// WeatherConfig locates the forecast API and tunes queue retention.
type WeatherConfig struct {
	Endpoint      string  `mapstructure:"endpoint"`
	Latitude      float64 `mapstructure:"latitude"`
	Longitude     float64 `mapstructure:"longitude"`
	RetentionDays int     `mapstructure:"retention_days"`
}

// DashboardConfig tunes the local monitoring server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogConfig tunes file logging and rotation.
type LogConfig struct {
	// File is the log file path. Empty logs to stderr only.
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the file once it exceeds this size.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays expires rotated files after this many days.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// DatabasePath returns the location of the local SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "teasync.db")
}

// QueuePath returns the location of the weather offline queue.
func (c *Config) QueuePath() string {
	return filepath.Join(c.DataDir, "weather_queue.json")
}

// Load reads configuration from the given file path. An empty path searches
// for config.yaml in the current directory and ~/.teasync.
// Priority: environment variables > config file > defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", ".teasync")
	v.SetDefault("plantation_id", "")

	v.SetDefault("remote.endpoint", "ws://localhost:8000/rpc")
	v.SetDefault("remote.namespace", "plantationops")
	v.SetDefault("remote.database", "teasync")
	v.SetDefault("remote.health_timeout", "5s")

	v.SetDefault("sync.interval", "15m")
	v.SetDefault("sync.execution_budget", "10m")
	v.SetDefault("sync.start_on_boot", true)
	v.SetDefault("sync.required_network", "any")

	v.SetDefault("weather.endpoint", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.retention_days", 7)

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8090)

	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.teasync")
	}

	v.SetEnvPrefix("TEASYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file falls back to defaults and environment.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch invokes onChange whenever the config file at path is rewritten.
// Changes are not applied to a running process; callers typically log a
// restart reminder. A missing or empty path disables watching.
func Watch(path string, onChange func(file string)) {
	if path == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.OnConfigChange(func(e fsnotify.Event) {
		onChange(e.Name)
	})
	v.WatchConfig()
}

// Validate checks the settings the daemon cannot run without.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Remote.Endpoint == "" {
		return fmt.Errorf("remote.endpoint must not be empty")
	}
	switch c.Sync.RequiredNetwork {
	case "any", "unmetered", "none":
	default:
		return fmt.Errorf("sync.required_network must be any, unmetered, or none, got %q", c.Sync.RequiredNetwork)
	}
	if c.Weather.RetentionDays < 0 {
		return fmt.Errorf("weather.retention_days must not be negative")
	}
	return nil
}
