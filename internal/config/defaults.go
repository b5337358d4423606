package config

import (
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"gopkg.in/yaml.v3"
)

// AppName names the config, data and env namespaces.
const AppName = "ohcupload"

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "OHCUPLOAD_"

// Defaults returns the built-in configuration layer as nested maps keyed
// the same way as the config file.
func Defaults() map[string]any {
	return map[string]any{
		"credentials": map[string]any{
			"api_key": "",
			"email":   "",
		},
		"handshakes_dir": "/root/handshakes",
		"whitelist":      []string{},
		"policy":         "abort",
		"status_file":    "/root/.ohc_uploads",
		"api": map[string]any{
			"url":     "https://api.onlinehashcrack.com/v2",
			"timeout": "30s",
		},
		"quota": map[string]any{
			"hourly_cap": 30,
			"window":     "1h",
			"cooldown":   "5m",
			"restore":    false,
		},
		"display": map[string]any{
			"pause": "0s",
		},
		"watch": map[string]any{
			"interval": "5m",
		},
		"server": map[string]any{
			"enabled":          false,
			"host":             "localhost",
			"port":             8080,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
		},
		"store": map[string]any{
			"enabled":    true,
			"driver":     "libsql",
			"path":       DefaultStorePath(),
			"url":        "",
			"auth_token": "",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "SIMPLE",
		},
		"metrics": map[string]any{
			"enabled": false,
			"port":    9090,
		},
	}
}

// FlattenDefaults returns Defaults as dotted keys for viper.SetDefault.
func FlattenDefaults() map[string]any {
	out := map[string]any{}
	flatten("", Defaults(), out)
	return out
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(full, nested, out)
			continue
		}
		out[full] = value
	}
}

// DefaultsYAML renders an example config file populated with defaults.
func DefaultsYAML() ([]byte, error) {
	out, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}
	header := "# ohcupload configuration\n# credentials.api_key and credentials.email are required.\n"
	return append([]byte(header), out...), nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
