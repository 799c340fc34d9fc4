package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, &UnknownKeysError{Path: path, Keys: keys}
	}

	applyDefaults(&cfg)
	normalize(&cfg)
	cfg.DB.Path = ResolveRelative(filepath.Dir(path), cfg.DB.Path)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path. When path is the default path and the file does
// not exist, it returns DefaultConfig instead.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if filepath.Clean(path) != filepath.Clean(DefaultPath) || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = DefaultConfig()
	normalize(cfg)
	return cfg, validate(cfg)
}

type UnknownKeysError struct {
	Path string
	Keys []string
}

func (e *UnknownKeysError) Error() string {
	return "unknown config keys in " + e.Path + ": " + strings.Join(e.Keys, ", ")
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/mappings.sqlite"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 8
	}

	if cfg.Resolver.CacheEnabled == nil {
		enabled := true
		cfg.Resolver.CacheEnabled = &enabled
	}
	if cfg.Resolver.CacheSize == 0 {
		cfg.Resolver.CacheSize = 4096
	}
	if cfg.Resolver.SearchLimit == 0 {
		cfg.Resolver.SearchLimit = 200
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "mappings"
	}
}

func normalize(cfg *Config) {
	cfg.DB.Path = strings.TrimSpace(cfg.DB.Path)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Observability.ServiceName = strings.TrimSpace(cfg.Observability.ServiceName)
}
