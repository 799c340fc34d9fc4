package naming

import (
	"strings"

	"mcmappings/internal/core/errors"
)

type TargetFilter int

const (
	FilterNone TargetFilter = iota
	FilterClasses
	FilterMembers
)

// TargetFlags restrict what an exported target contains.
//
// OnlyObf keeps only entries whose original name is still the obfuscated one,
// so "spigot2mcp-onlyobf" fills in mcp names where spigot left members
// obfuscated without touching names spigot already deobfuscated.
type TargetFlags struct {
	Filter  TargetFilter
	OnlyObf bool
}

func ParseTargetFlags(raw string) (TargetFlags, error) {
	var flags TargetFlags
	if raw == "" {
		return flags, nil
	}
	invalid := func() error {
		return errors.Newf(errors.CodeValidationError, "invalid target flags %q", raw)
	}
	for _, flag := range strings.Split(raw, "-") {
		switch flag {
		case "classes":
			if flags.Filter != FilterNone {
				return TargetFlags{}, invalid()
			}
			flags.Filter = FilterClasses
		case "members":
			if flags.Filter != FilterNone {
				return TargetFlags{}, invalid()
			}
			flags.Filter = FilterMembers
		case "onlyobf":
			if flags.OnlyObf {
				return TargetFlags{}, invalid()
			}
			flags.OnlyObf = true
		default:
			return TargetFlags{}, invalid()
		}
	}
	return flags, nil
}

func (f TargetFlags) String() string {
	parts := make([]string, 0, 2)
	switch f.Filter {
	case FilterClasses:
		parts = append(parts, "classes")
	case FilterMembers:
		parts = append(parts, "members")
	}
	if f.OnlyObf {
		parts = append(parts, "onlyobf")
	}
	return strings.Join(parts, "-")
}

func (f TargetFlags) IncludeClasses() bool { return f.Filter != FilterMembers }
func (f TargetFlags) IncludeMembers() bool { return f.Filter != FilterClasses }

// Target is a mapping from one naming system into another, written
// "{original}2{renamed}[-flags]".
type Target struct {
	Original System
	Renamed  System
	Flags    TargetFlags
}

func ParseTarget(raw string) (Target, error) {
	clean := strings.TrimSpace(raw)
	invalid := func() *errors.DomainError {
		return errors.Newf(errors.CodeValidationError, "invalid target %q", raw)
	}
	head, flagPart, _ := strings.Cut(clean, "-")
	original, renamed, ok := strings.Cut(head, "2")
	if !ok {
		return Target{}, invalid()
	}
	from, err := ParseSystem(original)
	if err != nil {
		return Target{}, invalid()
	}
	to, err := ParseSystem(renamed)
	if err != nil {
		return Target{}, invalid()
	}
	if from == to {
		return Target{}, invalid().WithContext("reason", "original and renamed systems are the same")
	}
	flags, err := ParseTargetFlags(flagPart)
	if err != nil {
		return Target{}, err
	}
	return Target{Original: from, Renamed: to, Flags: flags}, nil
}

func (t Target) String() string {
	head := string(t.Original) + "2" + string(t.Renamed)
	if flags := t.Flags.String(); flags != "" {
		return head + "-" + flags
	}
	return head
}

func (t Target) Reversed() Target {
	return Target{Original: t.Renamed, Renamed: t.Original, Flags: t.Flags}
}

// NeedsRelease reports whether either side of t is release scoped.
func (t Target) NeedsRelease() bool {
	return t.Original.ReleaseScoped() || t.Renamed.ReleaseScoped()
}
