package naming

import (
	"fmt"
	"strconv"
	"strings"

	"mcmappings/internal/core/errors"
)

type McpChannel string

const (
	ChannelSnapshot McpChannel = "snapshot"
	ChannelStable   McpChannel = "stable"
)

func ParseMcpChannel(raw string) (McpChannel, error) {
	switch McpChannel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelSnapshot:
		return ChannelSnapshot, nil
	case ChannelStable:
		return ChannelStable, nil
	}
	return "", errors.Newf(errors.CodeValidationError, "invalid mcp channel %q", raw)
}

// McpVersion identifies one mapping release: a dated snapshot or a numbered
// stable build.
type McpVersion struct {
	Value   uint32
	Channel McpChannel
}

func (v McpVersion) Snapshot() bool { return v.Channel == ChannelSnapshot }

func (v McpVersion) String() string {
	return fmt.Sprintf("%s_%d", v.Channel, v.Value)
}

// McpVersionSpec is the download spelling of a release, optionally without
// javadoc: "snapshot_nodoc_20180925", "stable_39".
type McpVersionSpec struct {
	Version McpVersion
	NoDoc   bool
}

func ParseMcpVersionSpec(raw string) (McpVersionSpec, error) {
	invalid := func() error {
		return errors.Newf(errors.CodeValidationError, "invalid mcp version spec %q", raw).
			WithContext(errors.CtxRelease, raw)
	}
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) < 2 || len(parts) > 3 {
		return McpVersionSpec{}, invalid()
	}
	channel, err := ParseMcpChannel(parts[0])
	if err != nil {
		return McpVersionSpec{}, invalid()
	}
	spec := McpVersionSpec{Version: McpVersion{Channel: channel}}
	rest := parts[1:]
	if len(rest) == 2 {
		if rest[0] != "nodoc" {
			return McpVersionSpec{}, invalid()
		}
		spec.NoDoc = true
		rest = rest[1:]
	}
	value, err := strconv.ParseUint(rest[0], 10, 32)
	if err != nil {
		return McpVersionSpec{}, invalid()
	}
	spec.Version.Value = uint32(value)
	return spec, nil
}

func (s McpVersionSpec) String() string {
	if s.NoDoc {
		return fmt.Sprintf("%s_nodoc_%d", s.Version.Channel, s.Version.Value)
	}
	return s.Version.String()
}
