package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered as: built-in defaults, the user config file,
// OHCUPLOAD_* environment variables, then runtime overrides.
type Config struct {
	Credentials   CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	HandshakesDir string            `mapstructure:"handshakes_dir" yaml:"handshakes_dir"`
	Whitelist     []string          `mapstructure:"whitelist" yaml:"whitelist"`
	Policy        string            `mapstructure:"policy" yaml:"policy"`
	StatusFile    string            `mapstructure:"status_file" yaml:"status_file"`

	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Quota   QuotaConfig   `mapstructure:"quota" yaml:"quota"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CredentialsConfig holds the onlinehashcrack account used for submissions.
type CredentialsConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Email  string `mapstructure:"email" yaml:"email"`
}

// APIConfig configures the submission endpoint.
type APIConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// QuotaConfig configures the hourly cap, pacing and throttle cooldown.
type QuotaConfig struct {
	HourlyCap int           `mapstructure:"hourly_cap" yaml:"hourly_cap"`
	Window    time.Duration `mapstructure:"window" yaml:"window"`
	Cooldown  time.Duration `mapstructure:"cooldown" yaml:"cooldown"`

	// Restore reloads the last persisted quota snapshot at startup.
	// When false, quota state lives only as long as the process.
	Restore bool `mapstructure:"restore" yaml:"restore"`
}

// DisplayConfig controls the settle pauses around batch status messages.
type DisplayConfig struct {
	Pause time.Duration `mapstructure:"pause" yaml:"pause"`
}

// WatchConfig controls the periodic trigger in watch mode.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// LoggingConfig contains logging configuration.
// SIMPLE suits one-shot CLI runs; STRUCTURED is used by watch mode.
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" yaml:"port"`
}
