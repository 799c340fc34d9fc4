package config

import (
	"path/filepath"
	"strings"
)

// ResolveRelative resolves value against base unless it is already absolute.
// An empty value resolves to base.
func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
