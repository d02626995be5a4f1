// Package config loads process configuration from defaults, an optional YAML
// file, and EMUCTL_-prefixed environment variables, in that order.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// AndroidSdkRoot overrides ANDROID_HOME when set.
	AndroidSdkRoot string `koanf:"android_sdk_root"`
	LogLevel       string `koanf:"log_level"`
	Theme          string `koanf:"theme"`

	// RefreshIntervalSec is the background device refresh cadence.
	RefreshIntervalSec int `koanf:"refresh_interval_sec"`
	// CacheExpirySec bounds how long catalog data (sdkmanager --list output
	// and friends) is reused before being re-fetched. Kept longer than the
	// refresh interval so expensive catalog commands are not re-run per tick.
	CacheExpirySec int `koanf:"cache_expiry_sec"`
	MaxLogEntries  int `koanf:"max_log_entries"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log_level":            "info",
		"theme":                "dark",
		"refresh_interval_sec": 3,
		"cache_expiry_sec":     300,
		"max_log_entries":      1000,
	}
}

// Load reads configuration. path may be empty, in which case the default
// location is tried; a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("EMUCTL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "EMUCTL_"))
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "emuctl", "config.yaml")
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

func (c *Config) CacheExpiry() time.Duration {
	return time.Duration(c.CacheExpirySec) * time.Second
}
