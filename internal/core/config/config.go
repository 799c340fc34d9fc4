package config

import (
	"fmt"
	"time"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "./mappings.toml"

type Config struct {
	Version       int           `toml:"version"`
	DB            Database      `toml:"db"`
	Resolver      Resolver      `toml:"resolver"`
	Observability Observability `toml:"observability"`
}

type Database struct {
	Path         string        `toml:"path"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
	MaxOpenConns int           `toml:"max_open_conns"`
}

type Resolver struct {
	CacheEnabled *bool `toml:"cache_enabled"`
	CacheSize    int   `toml:"cache_size"`
	SearchLimit  int   `toml:"search_limit"`
}

// CacheOn reports whether the resolver result cache is enabled. Unset means on.
func (r Resolver) CacheOn() bool {
	return r.CacheEnabled == nil || *r.CacheEnabled
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"` // empty disables the HTTP server
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	OTLPInsecure bool   `toml:"otlp_insecure"`
}

// DefaultConfig is used when the default config file does not exist.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf("db=%s busy_timeout=%s max_open_conns=%d cache=%t cache_size=%d search_limit=%d",
		c.DB.Path, c.DB.BusyTimeout, c.DB.MaxOpenConns, c.Resolver.CacheOn(), c.Resolver.CacheSize, c.Resolver.SearchLimit)
}

// Validate re-checks cfg, e.g. after ApplyEnvOverrides.
func (c *Config) Validate() error {
	return validate(c)
}
