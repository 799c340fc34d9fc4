package config

import (
	"fmt"
	"net"
	"strings"
)

func validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateDatabase(cfg); err != nil {
		return err
	}
	if err := validateResolver(cfg); err != nil {
		return err
	}
	return validateObservability(cfg)
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.DB.MaxOpenConns <= 0 {
		return fmt.Errorf("db.max_open_conns must be > 0, got %d", cfg.DB.MaxOpenConns)
	}
	return nil
}

// MaxSearchLimit caps how many classes one search may resolve.
const MaxSearchLimit = 10000

func validateResolver(cfg *Config) error {
	if cfg.Resolver.CacheSize < 0 {
		return fmt.Errorf("resolver.cache_size must be >= 0, got %d", cfg.Resolver.CacheSize)
	}
	if cfg.Resolver.SearchLimit < 0 || cfg.Resolver.SearchLimit > MaxSearchLimit {
		return fmt.Errorf("resolver.search_limit must be between 0 and %d, got %d", MaxSearchLimit, cfg.Resolver.SearchLimit)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	addr := cfg.Observability.MetricsAddr
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("observability.metrics_addr %q must be host:port: %w", addr, err)
	}
	return nil
}
