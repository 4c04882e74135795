package api

import "time"

// Config configures the standalone API HTTP server. Embedders that mount
// httpserve.Handler into their own router never need this package; it
// exists for the `depotctl serve` command and anyone else who wants depot
// to own its own listener.
type Config struct {
	// Enabled controls whether the server is started. Default: true.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port the server listens on. Default: 8080.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled reports whether the server should start, defaulting to true
// when Enabled was never set.
func (c *Config) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
