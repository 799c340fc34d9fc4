package resolver

import (
	"fmt"
	"strings"

	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
)

// sqlBuilder accumulates a statement and its arguments in placeholder order.
type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) add(fragment string, args ...any) *sqlBuilder {
	if b.sb.Len() > 0 {
		b.sb.WriteByte('\n')
	}
	b.sb.WriteString(fragment)
	b.args = append(b.args, args...)
	return b
}

func (b *sqlBuilder) build() (string, []any) {
	return b.sb.String(), b.args
}

// Column layout of every outward query. Class queries stop after
// colSpigotClass, field queries after colMcpMember.
const (
	colBaselineID = iota
	colVersionID
	colClassID
	colObfClass
	colSrgClass
	colSpigotClass
	colObfMember
	colSrgMember
	colSpigotMember
	colMcpMember
	colObfSignature
	colSrgSignature
	colSpigotSignature
	columnCount
)

func columnsFor(kind mappingdb.SymbolKind) int {
	switch kind {
	case mappingdb.KindClass:
		return colSpigotClass + 1
	case mappingdb.KindField:
		return colMcpMember + 1
	}
	return columnCount
}

// outward joins from baseline rows to the requested layers. Every layer is
// left joined so a symbol never renamed in a layer keeps its row with NULLs
// in that layer's columns.
type outward struct {
	kind      mappingdb.SymbolKind
	systems   map[naming.System]bool
	releaseID int64
}

func newOutward(kind mappingdb.SymbolKind, systems []naming.System, releaseID int64) outward {
	set := make(map[naming.System]bool, len(systems))
	for _, s := range systems {
		set[s] = true
	}
	return outward{kind: kind, systems: set, releaseID: releaseID}
}

func (o outward) wants(sys naming.System) bool { return o.systems[sys] }

func (o outward) column(on bool, expr string) string {
	if on {
		return expr
	}
	return "NULL"
}

// build returns the outward select restricted by where. In where, c is the
// declaring obf class and m the obf member.
func (o outward) build(where string, whereArgs ...any) (string, []any) {
	srgClasses := o.wants(naming.Srg) || o.wants(naming.Mcp)
	spigot := o.wants(naming.Spigot)
	mcp := o.wants(naming.Mcp) && o.releaseID != 0

	cols := []string{}
	if o.kind == mappingdb.KindClass {
		cols = append(cols, "c.id", "c.minecraft_version", "c.id")
	} else {
		cols = append(cols, "m.id", "m.minecraft_version", "c.id")
	}
	cols = append(cols,
		"c.name",
		o.column(srgClasses, "srg_c.name"),
		o.column(spigot, "spigot_c.name"),
	)
	if o.kind != mappingdb.KindClass {
		cols = append(cols,
			"m.name",
			o.column(o.wants(naming.Srg), "srg_m.name"),
			o.column(spigot, "spigot_m.name"),
			o.column(mcp, "mcp_m.name"),
		)
	}
	if o.kind == mappingdb.KindMethod {
		cols = append(cols,
			"s.obf_signature",
			o.column(srgClasses, "s.srg_signature"),
			o.column(spigot, "s.spigot_signature"),
		)
	}

	b := &sqlBuilder{}
	b.add("SELECT " + strings.Join(cols, ", "))
	if o.kind == mappingdb.KindClass {
		b.add("FROM obf_classes c")
	} else {
		b.add(fmt.Sprintf("FROM %s m", mappingdb.BaselineTable(o.kind)))
		b.add("JOIN obf_classes c ON c.id = m.declaring_class")
	}
	if o.kind == mappingdb.KindMethod {
		b.add("JOIN method_signatures s ON s.id = m.signature")
	}
	if srgClasses {
		b.add("LEFT JOIN srg_classes srg_c ON srg_c.obf_class = c.id")
	}
	if spigot {
		b.add("LEFT JOIN spigot_classes spigot_c ON spigot_c.obf_class = c.id")
	}
	if o.kind != mappingdb.KindClass {
		if o.wants(naming.Srg) {
			table, column, _ := mappingdb.LayerTable(naming.Srg, o.kind)
			b.add(fmt.Sprintf("LEFT JOIN %s srg_m ON srg_m.%s = m.id", table, column))
		}
		if spigot {
			table, column, _ := mappingdb.LayerTable(naming.Spigot, o.kind)
			b.add(fmt.Sprintf("LEFT JOIN %s spigot_m ON spigot_m.%s = m.id", table, column))
		}
		if mcp {
			table, column, _ := mappingdb.LayerTable(naming.Mcp, o.kind)
			b.add("LEFT JOIN mcp_versions mv ON mv.id = ? AND mv.loaded = 1 AND mv.minecraft_version = m.minecraft_version", o.releaseID)
			b.add(fmt.Sprintf("LEFT JOIN %s mcp_m ON mcp_m.%s = m.id AND mcp_m.mcp_version = mv.id", table, column))
		}
	}
	b.add("WHERE "+where, whereArgs...)
	return b.build()
}

// classMatch selects the ids of obf classes called name in sys. Classes sys
// never renamed keep their obf name, so those match on it.
func classMatch(sys naming.System, versionID int64, name string) (string, []any) {
	if sys == naming.Obf {
		return `SELECT c.id FROM obf_classes c WHERE c.minecraft_version = ? AND c.name = ?`,
			[]any{versionID, name}
	}
	table := string(sys.ClassSystem()) + "_classes"
	return fmt.Sprintf(`SELECT r.obf_class FROM %[1]s r JOIN obf_classes c ON c.id = r.obf_class
WHERE c.minecraft_version = ? AND r.name = ?
UNION
SELECT c.id FROM obf_classes c LEFT JOIN %[1]s r ON r.obf_class = c.id
WHERE c.minecraft_version = ? AND c.name = ? AND r.id IS NULL`, table),
		[]any{versionID, name, versionID, name}
}

// signatureColumn is the method_signatures column holding sys descriptors.
func signatureColumn(sys naming.System) string {
	return string(sys.SignatureSystem()) + "_signature"
}

// identify selects the baseline ids matching q in q.Source. Members must be
// renamed in the source system to match by its name.
func identify(q Query, versionID int64) (string, []any) {
	if q.Kind == mappingdb.KindClass {
		return classMatch(q.Source, versionID, q.Class)
	}

	b := &sqlBuilder{}
	b.add(fmt.Sprintf("SELECT m.id FROM %s m", mappingdb.BaselineTable(q.Kind)))
	nameExpr := "m.name"
	if q.Source != naming.Obf {
		table, column, _ := mappingdb.LayerTable(q.Source, q.Kind)
		if q.Source.ReleaseScoped() {
			b.add(fmt.Sprintf("JOIN %s r ON r.%s = m.id AND r.mcp_version = ?", table, column), q.ReleaseID)
			b.add("JOIN mcp_versions mv ON mv.id = r.mcp_version AND mv.loaded = 1")
		} else {
			b.add(fmt.Sprintf("JOIN %s r ON r.%s = m.id", table, column))
		}
		nameExpr = "r.name"
	}
	if q.Kind == mappingdb.KindMethod {
		b.add("JOIN method_signatures s ON s.id = m.signature")
	}
	b.add(fmt.Sprintf("WHERE m.minecraft_version = ? AND %s = ?", nameExpr), versionID, q.Member)
	if q.Kind == mappingdb.KindMethod {
		b.add(fmt.Sprintf("AND s.%s = ?", signatureColumn(q.Source)), q.Signature)
	}
	classSQL, classArgs := classMatch(q.Source, versionID, q.Class)
	b.add("AND m.declaring_class IN ("+classSQL+")", classArgs...)
	return b.build()
}
