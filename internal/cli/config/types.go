// Package config provides configuration management for the kipdash CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	SettingsPath string        `koanf:"settings_path"`
	LoginName    string        `koanf:"login_name"`
	LogLevel     string        `koanf:"log_level"`
	OutputFormat string        `koanf:"output"`
	Verbose      bool          `koanf:"verbose"`
	SignalK      SignalKConfig `koanf:"signalk"`
	Sync         SyncConfig    `koanf:"sync"`
	HTTP         HTTPConfig    `koanf:"http"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// SignalKConfig holds the Signal K server connection.
type SignalKConfig struct {
	URL          string        `koanf:"url"`
	Token        string        `koanf:"token"`
	ReconnectMin time.Duration `koanf:"reconnect_min"`
	ReconnectMax time.Duration `koanf:"reconnect_max"`
}

// SyncConfig holds the remote sync settings.
type SyncConfig struct {
	Enabled        bool          `koanf:"enabled"`
	SampleInterval time.Duration `koanf:"sample_interval"`
	SourceFilter   string        `koanf:"source_filter"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr  string `koanf:"addr"`
	Watch bool   `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultSettingsFile   = ".kipdash/settings.db"
	DefaultLoginName      = "anonymous"
	DefaultLogLevel       = "info"
	DefaultOutput         = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSignalKURL     = "ws://localhost:3000/signalk/v1/stream"
	DefaultReconnectMin   = time.Second
	DefaultReconnectMax   = 30 * time.Second
	DefaultSampleInterval = 500 * time.Millisecond
	DefaultHTTPAddr       = ":8766"
)

// ConfigFileNames are searched in order.
var ConfigFileNames = []string{"kipdash.yaml", "kipdash.yml"}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"settings_path":         DefaultSettingsFile,
		"login_name":            DefaultLoginName,
		"log_level":             DefaultLogLevel,
		"output":                DefaultOutput,
		"verbose":               false,
		"signalk.url":           DefaultSignalKURL,
		"signalk.reconnect_min": DefaultReconnectMin.String(),
		"signalk.reconnect_max": DefaultReconnectMax.String(),
		"sync.enabled":          true,
		"sync.sample_interval":  DefaultSampleInterval.String(),
		"http.addr":             DefaultHTTPAddr,
		"http.watch":            true,
	}
}
