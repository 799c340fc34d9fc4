package mappingdb

import (
	"database/sql"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/engine/naming"
)

// SymbolKind selects one of the three symbol tables of every layer.
type SymbolKind string

const (
	KindClass  SymbolKind = "class"
	KindMethod SymbolKind = "method"
	KindField  SymbolKind = "field"
)

func (k SymbolKind) Valid() bool {
	switch k {
	case KindClass, KindMethod, KindField:
		return true
	}
	return false
}

// tableSuffix is the plural used in table names: classes, methods, fields.
func (k SymbolKind) tableSuffix() string {
	if k == KindClass {
		return "classes"
	}
	return string(k) + "s"
}

type SoftwareVersion struct {
	ID   int64
	Name string
}

type MappingRelease struct {
	ID        int64
	Value     uint32
	Snapshot  bool
	VersionID int64
	Loaded    bool
}

func (r MappingRelease) McpVersion() naming.McpVersion {
	channel := naming.ChannelStable
	if r.Snapshot {
		channel = naming.ChannelSnapshot
	}
	return naming.McpVersion{Value: r.Value, Channel: channel}
}

// Signature is a method's structural shape in every system that records one.
type Signature struct {
	ID        int64
	VersionID int64
	Obf       string
	Srg       sql.NullString
	Spigot    sql.NullString
}

// Form returns the descriptor recorded for sys. Mcp shares the srg form.
func (s Signature) Form(sys naming.System) (string, bool) {
	switch sys.SignatureSystem() {
	case naming.Obf:
		return s.Obf, true
	case naming.Srg:
		return s.Srg.String, s.Srg.Valid
	case naming.Spigot:
		return s.Spigot.String, s.Spigot.Valid
	}
	return "", false
}

type BaselineClass struct {
	ID        int64
	VersionID int64
	Name      string
}

type BaselineMethod struct {
	ID          int64
	VersionID   int64
	ClassID     int64
	Name        string
	SignatureID int64
}

type BaselineField struct {
	ID        int64
	VersionID int64
	ClassID   int64
	Name      string
}

// ReleaseRename is one release's name for a baseline member.
type ReleaseRename struct {
	ReleaseID int64
	Name      string
}

// LayerTable returns the table holding sys renames of kind and the column
// pointing back at the baseline row.
func LayerTable(sys naming.System, kind SymbolKind) (table, column string, err error) {
	if !sys.Derived() || !kind.Valid() {
		return "", "", errors.Newf(errors.CodeValidationError, "no %s layer for %q", kind, sys)
	}
	if kind == KindClass {
		sys = sys.ClassSystem()
	}
	return string(sys) + "_" + kind.tableSuffix(), "obf_" + string(kind), nil
}

// BaselineTable returns the obf table for kind.
func BaselineTable(kind SymbolKind) string {
	return "obf_" + kind.tableSuffix()
}
