// Package config loads the x-wireless YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration
type Config struct {
	Bus                   string          `yaml:"bus"` // "session" or "system"
	Log                   LogConfig       `yaml:"log"`
	RadioInfo             RadioInfoConfig `yaml:"radio_info"`
	Airplane              AirplaneConfig  `yaml:"airplane"`
	EmergencyCallbackMode bool            `yaml:"emergency_callback_mode"`
	Tethering             TetheringConfig `yaml:"tethering"`
	Screen                ScreenConfig    `yaml:"screen"`
	HTTP                  HTTPConfig      `yaml:"http"`
}

// LogConfig selects the log destination. An empty File logs to stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RadioInfoConfig holds the text shown when a radio info row is missing
type RadioInfoConfig struct {
	TypeDefault   string `yaml:"type_default"`
	StatusDefault string `yaml:"status_default"`
}

// AirplaneConfig lists radios that may stay on in airplane mode
type AirplaneConfig struct {
	ToggleableRadios []string `yaml:"toggleable_radios"`
}

// TetheringConfig is the access point started by the tethering toggle
type TetheringConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// ScreenConfig trims the settings screen
type ScreenConfig struct {
	Hidden []string `yaml:"hidden"`
}

// HTTPConfig is the optional local HTTP API
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Bus: "session",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		RadioInfo: RadioInfoConfig{
			TypeDefault:   "Radio type unavailable",
			StatusDefault: "Radio status unavailable",
		},
		Airplane: AirplaneConfig{
			ToggleableRadios: []string{"bluetooth", "wifi"},
		},
		Tethering: TetheringConfig{
			SSID:       "x-wireless",
			Passphrase: "xwireless",
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/x-wireless/config.yaml
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "x-wireless", "config.yaml")
}

// Load reads the file at path over the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that have no sane fallback
func (c *Config) Validate() error {
	switch c.Bus {
	case "session", "system":
	default:
		return fmt.Errorf("bus must be \"session\" or \"system\", got %q", c.Bus)
	}
	for _, r := range c.Airplane.ToggleableRadios {
		switch r {
		case "wifi", "bluetooth":
		default:
			return fmt.Errorf("unknown toggleable radio %q", r)
		}
	}
	// iwd rejects WPA2 passphrases outside 8..63 characters
	if n := len(c.Tethering.Passphrase); n < 8 || n > 63 {
		return fmt.Errorf("tethering passphrase must be 8-63 characters")
	}
	if c.Tethering.SSID == "" {
		return errors.New("tethering ssid is empty")
	}
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		return errors.New("http.listen is empty")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log limits must not be negative")
	}
	return nil
}
