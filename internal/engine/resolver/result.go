package resolver

import (
	"database/sql"
	"fmt"

	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
)

// NameSet holds one name per requested system. A present key with an invalid
// value means the system was requested but never renamed the symbol.
type NameSet map[naming.System]sql.NullString

// Name reports the name recorded for sys.
func (n NameSet) Name(sys naming.System) (string, bool) {
	v, ok := n[sys]
	return v.String, ok && v.Valid
}

func (n NameSet) clone() NameSet {
	if n == nil {
		return nil
	}
	out := make(NameSet, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// CrossReference is one symbol's names in every requested system, anchored on
// its obf baseline row. Member and Signature are nil for classes; Signature
// is only set for methods.
type CrossReference struct {
	Kind       mappingdb.SymbolKind
	VersionID  int64
	ReleaseID  int64
	BaselineID int64
	ClassID    int64
	Systems    []naming.System
	Class      NameSet
	Member     NameSet
	Signature  NameSet
}

// Names is a cross-reference projected onto one system.
type Names struct {
	Class     string
	Member    sql.NullString
	Signature sql.NullString
}

// In projects x onto sys. The class name falls back to the obf name when
// sys left the class unrenamed; member and signature do not fall back.
func (x *CrossReference) In(sys naming.System) Names {
	var out Names
	if name, ok := x.Class.Name(sys); ok {
		out.Class = name
	} else {
		out.Class, _ = x.Class.Name(naming.Obf)
	}
	if x.Member != nil {
		out.Member = x.Member[sys]
	}
	if x.Signature != nil {
		out.Signature = x.Signature[sys]
	}
	return out
}

func (x *CrossReference) clone() *CrossReference {
	if x == nil {
		return nil
	}
	out := *x
	out.Systems = append([]naming.System(nil), x.Systems...)
	out.Class = x.Class.clone()
	out.Member = x.Member.clone()
	out.Signature = x.Signature.clone()
	return &out
}

// scanRow reads one outward row into a cross-reference restricted to systems.
func scanRow(rows *sql.Rows, kind mappingdb.SymbolKind, systems []naming.System, releaseID int64) (*CrossReference, error) {
	n := columnsFor(kind)
	var ids [3]int64
	var names [columnCount]sql.NullString
	dest := make([]any, 0, n)
	dest = append(dest, &ids[colBaselineID], &ids[colVersionID], &ids[colClassID])
	for i := colObfClass; i < n; i++ {
		dest = append(dest, &names[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan cross-reference: %w", err)
	}

	x := &CrossReference{
		Kind:       kind,
		BaselineID: ids[colBaselineID],
		VersionID:  ids[colVersionID],
		ClassID:    ids[colClassID],
		ReleaseID:  releaseID,
		Systems:    systems,
		Class:      make(NameSet, len(systems)),
	}
	if kind != mappingdb.KindClass {
		x.Member = make(NameSet, len(systems))
	}
	if kind == mappingdb.KindMethod {
		x.Signature = make(NameSet, len(systems))
	}
	for _, sys := range systems {
		switch sys {
		case naming.Obf:
			x.Class[sys] = names[colObfClass]
		case naming.Srg, naming.Mcp:
			x.Class[sys] = names[colSrgClass]
		case naming.Spigot:
			x.Class[sys] = names[colSpigotClass]
		}
		if x.Member != nil {
			x.Member[sys] = names[memberColumn(sys)]
		}
		if x.Signature != nil {
			x.Signature[sys] = names[signatureColumnIndex(sys)]
		}
	}
	return x, nil
}

func memberColumn(sys naming.System) int {
	switch sys {
	case naming.Srg:
		return colSrgMember
	case naming.Spigot:
		return colSpigotMember
	case naming.Mcp:
		return colMcpMember
	}
	return colObfMember
}

func signatureColumnIndex(sys naming.System) int {
	switch sys.SignatureSystem() {
	case naming.Srg:
		return colSrgSignature
	case naming.Spigot:
		return colSpigotSignature
	}
	return colObfSignature
}
