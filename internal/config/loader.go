// Package config provides centralized configuration management for ohcupload.
// It layers built-in defaults, an optional YAML config file, OHCUPLOAD_*
// environment variables and runtime overrides, then decodes the result into
// a typed Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	// appConfig holds the current application configuration
	appConfig      *Config
	configFileUsed string
	configMu       sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load loads configuration using the layered pattern:
// 1. Built-in defaults
// 2. The config file (explicit path, or XDG config dir and ./config)
// 3. Environment variables and runtime overrides
//
// An explicit configFile that cannot be read is an error; a missing
// discovered file is not. This function is safe to call multiple times.
func Load(ctx context.Context, configFile string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	for key, value := range FlattenDefaults() {
		v.SetDefault(key, value)
	}

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
	} else {
		for _, dir := range configSearchPaths() {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if strings.TrimSpace(configFile) != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	layers := append([]map[string]any{envOverrides}, runtimeOverrides...)
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if err := v.MergeConfigMap(layer); err != nil {
			return nil, fmt.Errorf("failed to merge config overrides: %w", err)
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	setConfig(cfg, v.ConfigFileUsed())
	return cfg, nil
}

// Decode converts a nested settings map into a Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Credentials.APIKey = strings.TrimSpace(c.Credentials.APIKey)
	c.Credentials.Email = strings.TrimSpace(c.Credentials.Email)
	c.HandshakesDir = expandHome(strings.TrimSpace(c.HandshakesDir))
	c.StatusFile = expandHome(strings.TrimSpace(c.StatusFile))
	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	c.Logging.Profile = strings.ToUpper(strings.TrimSpace(c.Logging.Profile))

	whitelist := make([]string, 0, len(c.Whitelist))
	for _, entry := range c.Whitelist {
		if entry = strings.TrimSpace(entry); entry != "" {
			whitelist = append(whitelist, entry)
		}
	}
	c.Whitelist = whitelist

	if strings.TrimSpace(c.Store.URL) == "" && strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = DefaultStorePath()
	}
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// ConfigFileUsed returns the config file read by the last Load, if any.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return configFileUsed
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config, file string) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
	configFileUsed = file
}

func configSearchPaths() []string {
	paths := []string{}
	if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
		paths = append(paths, dir)
	}
	return append(paths, "./config")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// getEnvSpecs lists the OHCUPLOAD_* variables and the config keys they set
// Maps OHCUPLOAD_{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	return []EnvVarSpec{
		// Credentials
		{Name: prefix + "API_KEY", Path: []string{"credentials", "api_key"}, Type: EnvString},
		{Name: prefix + "EMAIL", Path: []string{"credentials", "email"}, Type: EnvString},

		// Discovery and policy
		{Name: prefix + "HANDSHAKES_DIR", Path: []string{"handshakes_dir"}, Type: EnvString},
		{Name: prefix + "WHITELIST", Path: []string{"whitelist"}, Type: EnvString},
		{Name: prefix + "POLICY", Path: []string{"policy"}, Type: EnvString},
		{Name: prefix + "STATUS_FILE", Path: []string{"status_file"}, Type: EnvString},

		// API endpoint; durations are converted by the mapstructure decode hook
		{Name: prefix + "API_URL", Path: []string{"api", "url"}, Type: EnvString},
		{Name: prefix + "API_TIMEOUT", Path: []string{"api", "timeout"}, Type: EnvString},

		// Quota
		{Name: prefix + "QUOTA_HOURLY_CAP", Path: []string{"quota", "hourly_cap"}, Type: EnvInt},
		{Name: prefix + "QUOTA_WINDOW", Path: []string{"quota", "window"}, Type: EnvString},
		{Name: prefix + "QUOTA_COOLDOWN", Path: []string{"quota", "cooldown"}, Type: EnvString},
		{Name: prefix + "QUOTA_RESTORE", Path: []string{"quota", "restore"}, Type: EnvBool},

		{Name: prefix + "DISPLAY_PAUSE", Path: []string{"display", "pause"}, Type: EnvString},
		{Name: prefix + "WATCH_INTERVAL", Path: []string{"watch", "interval"}, Type: EnvString},

		// Server config
		{Name: prefix + "SERVER_ENABLED", Path: []string{"server", "enabled"}, Type: EnvBool},
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_ENABLED", Path: []string{"store", "enabled"}, Type: EnvBool},
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
	}
}
