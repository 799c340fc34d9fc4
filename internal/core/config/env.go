package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MAPPINGS_[SECTION]_[KEY] (e.g., MAPPINGS_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	// Database
	setEnvString(&cfg.DB.Path, "MAPPINGS_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "MAPPINGS_DB_BUSY_TIMEOUT")
	setEnvInt(&cfg.DB.MaxOpenConns, "MAPPINGS_DB_MAX_OPEN_CONNS")

	// Resolver
	if val, ok := os.LookupEnv("MAPPINGS_RESOLVER_CACHE_ENABLED"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "MAPPINGS_RESOLVER_CACHE_ENABLED", "value", val)
			cfg.Resolver.CacheEnabled = &b
		}
	}
	setEnvInt(&cfg.Resolver.CacheSize, "MAPPINGS_RESOLVER_CACHE_SIZE")
	setEnvInt(&cfg.Resolver.SearchLimit, "MAPPINGS_RESOLVER_SEARCH_LIMIT")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "MAPPINGS_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MAPPINGS_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "MAPPINGS_OBSERVABILITY_SERVICE_NAME")
	setEnvBool(&cfg.Observability.OTLPInsecure, "MAPPINGS_OBSERVABILITY_OTLP_INSECURE")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
