// Package config loads depot's typed, validated configuration from YAML,
// environment variables, and defaults, following the same viper +
// mapstructure + validator layering as the teacher's own config package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/depotgo/depot/internal/logger"
)

// Config is the root configuration object for a depot process: a registry
// of stores to configure at startup, the HTTP serving layer, and the
// ambient logging/telemetry/metrics stack.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (DEPOT_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	Registry  RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Logging   logger.Config   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// StoreConfig configures a single named store. Backend selects which
// driver constructor to use; Options carries the remaining driver-specific
// keys verbatim, decoded into that driver's own Config struct at build
// time (storage_path for local, bucket/region/... for s3, and so on).
type StoreConfig struct {
	Name    string         `mapstructure:"name" yaml:"name" validate:"required"`
	Backend string         `mapstructure:"backend" yaml:"backend" validate:"required"`
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// RegistryConfig bootstraps the process-wide store registry: one entry per
// named store, an optional default store name (the first configured store
// is used when absent), and an alias table.
type RegistryConfig struct {
	Stores       []StoreConfig     `mapstructure:"stores" yaml:"stores" validate:"dive"`
	DefaultStore string            `mapstructure:"default_store" yaml:"default_store"`
	Aliases      map[string]string `mapstructure:"aliases" yaml:"aliases"`
}

// HTTPConfig configures the serving layer handler.
type HTTPConfig struct {
	Mountpoint  string        `mapstructure:"mountpoint" yaml:"mountpoint" validate:"required"`
	CacheMaxAge time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"omitempty,gte=0,lte=1"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Load loads configuration from a file, environment, and defaults.
// An empty configPath falls back to the default XDG config location; if
// no file exists there either, Load returns the default configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning an operator-friendly error when
// an explicitly named file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DEPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes mapstructure decode hooks. Only a duration
// hook is needed: unlike the teacher, this config has no byte-size fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "depot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "depot")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
