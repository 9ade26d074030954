package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LoginName) == "" {
		return fmt.Errorf("login_name is required")
	}
	if c.SettingsPath == "" {
		return fmt.Errorf("settings_path is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "auto", "text", "markdown", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q (want auto|text|markdown|json|yaml)", c.OutputFormat)
	}
	if c.Sync.SampleInterval < 0 {
		return fmt.Errorf("sync.sample_interval must not be negative")
	}
	if c.SignalK.ReconnectMin < 0 || c.SignalK.ReconnectMax < 0 {
		return fmt.Errorf("signalk reconnect delays must not be negative")
	}
	return validateSignalKURL(c.SignalK.URL)
}

func validateSignalKURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("signalk.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid signalk.url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("invalid signalk.url %q: scheme must be ws, wss, http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid signalk.url %q: missing host", raw)
	}
	return nil
}
