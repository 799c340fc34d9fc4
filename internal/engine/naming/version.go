package naming

import (
	"fmt"
	"strconv"
	"strings"

	"mcmappings/internal/core/errors"
)

// MinecraftVersion is a game release number. A zero patch is omitted when
// formatting, so "1.13.0" and "1.13" are the same version.
type MinecraftVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func ParseMinecraftVersion(raw string) (MinecraftVersion, error) {
	clean := strings.TrimSpace(raw)
	invalid := func() error {
		return errors.Newf(errors.CodeValidationError, "invalid minecraft version %q", raw).
			WithContext(errors.CtxVersion, raw)
	}
	parts := strings.Split(clean, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return MinecraftVersion{}, invalid()
	}
	nums := make([]uint32, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return MinecraftVersion{}, invalid()
		}
		nums[i] = uint32(n)
	}
	return MinecraftVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v MinecraftVersion) String() string {
	if v.Patch == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1.
func (v MinecraftVersion) Compare(other MinecraftVersion) int {
	switch {
	case v.Major != other.Major:
		return cmpUint(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpUint(v.Minor, other.Minor)
	default:
		return cmpUint(v.Patch, other.Patch)
	}
}

func cmpUint(a, b uint32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// CanonicalVersionName parses raw and returns its canonical spelling.
func CanonicalVersionName(raw string) (string, error) {
	v, err := ParseMinecraftVersion(raw)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
