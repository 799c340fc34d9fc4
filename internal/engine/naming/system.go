// Package naming defines the naming systems a game symbol can be known by,
// and the version identifiers that scope them.
//
//   - obf: the obfuscated names shipped in the game jar. Every other system is
//     anchored on these.
//   - srg: the community rename set. Stable per game version.
//   - spigot: the server-modding rename set. Most members stay obfuscated.
//   - mcp: the crowd-sourced deobfuscation mappings. These are published in
//     releases (snapshot or stable) and only rename methods and fields; class
//     names and signatures are the srg ones.
package naming

import (
	"strings"

	"mcmappings/internal/core/errors"
)

type System string

const (
	Obf    System = "obf"
	Srg    System = "srg"
	Spigot System = "spigot"
	Mcp    System = "mcp"
)

// AllSystems is the canonical column order used in every cross-reference.
var AllSystems = []System{Obf, Srg, Spigot, Mcp}

func ParseSystem(raw string) (System, error) {
	switch System(strings.ToLower(strings.TrimSpace(raw))) {
	case Obf:
		return Obf, nil
	case Srg:
		return Srg, nil
	case Spigot:
		return Spigot, nil
	case Mcp:
		return Mcp, nil
	}
	return "", errors.Newf(errors.CodeValidationError, "unknown naming system %q", raw).
		WithContext(errors.CtxSystem, raw)
}

// ParseSystems parses a comma separated list. An empty list means all systems.
func ParseSystems(raw string) ([]System, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]System(nil), AllSystems...), nil
	}
	seen := make(map[System]bool)
	out := make([]System, 0, len(AllSystems))
	for _, part := range strings.Split(raw, ",") {
		sys, err := ParseSystem(part)
		if err != nil {
			return nil, err
		}
		if seen[sys] {
			continue
		}
		seen[sys] = true
		out = append(out, sys)
	}
	return Ordered(out), nil
}

// Ordered returns systems in AllSystems order without duplicates.
func Ordered(systems []System) []System {
	want := make(map[System]bool, len(systems))
	for _, s := range systems {
		want[s] = true
	}
	out := make([]System, 0, len(want))
	for _, s := range AllSystems {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

func (s System) String() string { return string(s) }

func (s System) Valid() bool {
	switch s {
	case Obf, Srg, Spigot, Mcp:
		return true
	}
	return false
}

// Derived reports whether s renames the obf baseline.
func (s System) Derived() bool { return s.Valid() && s != Obf }

// ReleaseScoped reports whether renames in s are tied to a mapping release.
func (s System) ReleaseScoped() bool { return s == Mcp }

// RenamesClasses reports whether s carries its own class names.
func (s System) RenamesClasses() bool { return s != Mcp }

// ClassSystem is the system whose class names s uses.
func (s System) ClassSystem() System {
	if s == Mcp {
		return Srg
	}
	return s
}

// SignatureSystem is the system whose method descriptors s uses.
func (s System) SignatureSystem() System { return s.ClassSystem() }

