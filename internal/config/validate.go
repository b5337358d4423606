package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// APIKeyPrefix is required on every onlinehashcrack API key.
const APIKeyPrefix = "sk_"

// Service-side rate limits. Configuration may tighten these but never relax them.
const (
	MaxHourlyCap = 30
	MinWindow    = time.Hour
	MinCooldown  = 5 * time.Minute
)

// FieldError describes one invalid configuration value.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the settings the uploader cannot run without.
// It normalizes Policy in place and returns nil or a *ValidationError.
func Validate(cfg *Config) error {
	verr := &ValidationError{}
	if cfg == nil {
		verr.add("config", "is required")
		return verr
	}

	if cfg.Credentials.Email == "" {
		verr.add("credentials.email", "is required")
	}
	switch {
	case cfg.Credentials.APIKey == "":
		verr.add("credentials.api_key", "is required")
	case !strings.HasPrefix(cfg.Credentials.APIKey, APIKeyPrefix):
		verr.add("credentials.api_key", "must start with %q", APIKeyPrefix)
	}

	if strings.TrimSpace(cfg.HandshakesDir) == "" {
		verr.add("handshakes_dir", "is required")
	}

	cfg.Policy = strings.ToLower(strings.TrimSpace(cfg.Policy))
	switch cfg.Policy {
	case "", "abort", "skip":
	default:
		verr.add("policy", "unknown policy %q (want abort or skip)", cfg.Policy)
	}

	if parsed, err := url.Parse(cfg.API.URL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		verr.add("api.url", "must be an absolute http(s) URL")
	}
	if cfg.API.Timeout <= 0 {
		verr.add("api.timeout", "must be positive")
	}

	switch {
	case cfg.Quota.HourlyCap <= 0:
		verr.add("quota.hourly_cap", "must be positive")
	case cfg.Quota.HourlyCap > MaxHourlyCap:
		verr.add("quota.hourly_cap", "must not exceed %d", MaxHourlyCap)
	}
	switch {
	case cfg.Quota.Window <= 0:
		verr.add("quota.window", "must be positive")
	case cfg.Quota.Window < MinWindow:
		verr.add("quota.window", "must be at least %s", MinWindow)
	}
	switch {
	case cfg.Quota.Cooldown <= 0:
		verr.add("quota.cooldown", "must be positive")
	case cfg.Quota.Cooldown < MinCooldown:
		verr.add("quota.cooldown", "must be at least %s", MinCooldown)
	}
	if cfg.Display.Pause < 0 {
		verr.add("display.pause", "must not be negative")
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}
