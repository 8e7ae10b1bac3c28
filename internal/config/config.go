package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Hemanth143-hy/heart-rate-server/internal/hrs"
)

// MaxStringLen bounds a Device Information string.
const MaxStringLen = hrs.MaxStringLen

// Advertising interval bounds allowed by the controller.
const (
	MinAdvertiseIntervalMS = 20
	MaxAdvertiseIntervalMS = 10240
)

// Config holds all application configuration.
type Config struct {
	DeviceInfo DeviceInfoConfig `yaml:"device_info"`
	Advertise  AdvertiseConfig  `yaml:"advertise"`
	LogLevel   string           `yaml:"log_level"`
}

// DeviceInfoConfig holds the Device Information service strings.
type DeviceInfoConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	Firmware     string `yaml:"firmware"`
	Software     string `yaml:"software"`
}

// AdvertiseConfig holds advertising settings.
type AdvertiseConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// Info converts the strings to the form the peripheral state takes.
func (d DeviceInfoConfig) Info() hrs.DeviceInfo {
	return hrs.DeviceInfo{
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		Firmware:     d.Firmware,
		Software:     d.Software,
	}
}

// Interval returns the advertising interval as a duration.
func (a AdvertiseConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMS) * time.Millisecond
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "heart-rate-server")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the factory values.
func Default() *Config {
	info := hrs.DefaultDeviceInfo()
	return &Config{
		DeviceInfo: DeviceInfoConfig{
			Manufacturer: info.Manufacturer,
			Model:        info.Model,
			Firmware:     info.Firmware,
			Software:     info.Software,
		},
		Advertise: AdvertiseConfig{
			IntervalMS: 100,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	strs := []struct {
		key, value string
	}{
		{"device_info.manufacturer", c.DeviceInfo.Manufacturer},
		{"device_info.model", c.DeviceInfo.Model},
		{"device_info.firmware", c.DeviceInfo.Firmware},
		{"device_info.software", c.DeviceInfo.Software},
	}
	for _, s := range strs {
		if s.value == "" {
			return fmt.Errorf("%s must not be empty", s.key)
		}
		if len(s.value) > MaxStringLen {
			return fmt.Errorf("%s must be at most %d bytes, got %d", s.key, MaxStringLen, len(s.value))
		}
	}

	if c.Advertise.IntervalMS < MinAdvertiseIntervalMS || c.Advertise.IntervalMS > MaxAdvertiseIntervalMS {
		return fmt.Errorf("advertise.interval_ms must be between %d and %d, got %d",
			MinAdvertiseIntervalMS, MaxAdvertiseIntervalMS, c.Advertise.IntervalMS)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// yield info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# heart-rate-server configuration
#
# device_info strings are served by the Device Information service and may
# not be longer than 512 bytes. advertise.interval_ms is 20..10240.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(defaultHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
