package config

import (
	"time"

	"github.com/depotgo/depot/internal/logger"
)

// ApplyDefaults fills in any zero-valued fields a loaded config left unset.
// Called after unmarshaling a file so that a partial config still produces
// a usable Config, the same way the teacher's ApplyDefaults does.
func ApplyDefaults(cfg *Config) {
	applyHTTPDefaults(&cfg.HTTP)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.Registry.DefaultStore == "" && len(cfg.Registry.Stores) > 0 {
		cfg.Registry.DefaultStore = cfg.Registry.Stores[0].Name
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.Mountpoint == "" {
		cfg.Mountpoint = "/depot"
	}
	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = 7 * 24 * time.Hour
	}
}

func applyLoggingDefaults(cfg *logger.Config) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
}

// DefaultConfig returns a Config usable with no file and no environment
// overrides: a single in-memory store as both default and the registry's
// only entry, serving at /depot.
func DefaultConfig() *Config {
	cfg := &Config{
		Registry: RegistryConfig{
			Stores: []StoreConfig{
				{Name: "default", Backend: "memory"},
			},
			DefaultStore: "default",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
