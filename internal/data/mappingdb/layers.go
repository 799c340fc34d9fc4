package mappingdb

import (
	"context"
	"database/sql"
	"fmt"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/engine/naming"
)

// Rename returns the name sys gives the baseline row baselineID of kind.
// ok=false means the symbol was never renamed in sys, which is not an error.
// releaseID is required for mcp members and ignored otherwise; renames of a
// release that is not loaded are invisible.
func (s *Store) Rename(ctx context.Context, sys naming.System, kind SymbolKind, baselineID, releaseID int64) (string, bool, error) {
	table, column, err := LayerTable(sys, kind)
	if err != nil {
		return "", false, err
	}

	query := fmt.Sprintf(`SELECT name FROM %s WHERE %s = ?`, table, column)
	args := []any{baselineID}
	if sys.ReleaseScoped() && kind != KindClass {
		if _, err := releaseByID(ctx, s.db, releaseID); err != nil {
			return "", false, err
		}
		query = fmt.Sprintf(`SELECT r.name FROM %s r
JOIN mcp_versions v ON v.id = r.mcp_version AND v.loaded = 1
WHERE r.%s = ? AND r.mcp_version = ?`, table, column)
		args = append(args, releaseID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", false, classify(err, "lookup "+table, errors.CodeInternal)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", false, fmt.Errorf("scan %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("iterate %s: %w", table, err)
	}
	switch len(names) {
	case 0:
		return "", false, nil
	case 1:
		return names[0], true, nil
	}
	return "", false, errors.Newf(errors.CodeAmbiguousMapping, "%d %s rows for baseline %s %d", len(names), sys, kind, baselineID).
		WithContext(errors.CtxTable, table).
		WithContext(errors.CtxSystem, sys.String())
}

// ReleaseRenames lists every loaded release's mcp name for a baseline member,
// newest release first within each channel.
func (s *Store) ReleaseRenames(ctx context.Context, kind SymbolKind, baselineID int64) ([]ReleaseRename, error) {
	if kind == KindClass {
		return nil, errors.Newf(errors.CodeValidationError, "mcp does not rename classes")
	}
	table, column, err := LayerTable(naming.Mcp, kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT r.mcp_version, r.name FROM %s r
JOIN mcp_versions v ON v.id = r.mcp_version AND v.loaded = 1
WHERE r.%s = ?
ORDER BY v.snapshot ASC, v.value DESC`, table, column), baselineID)
	if err != nil {
		return nil, classify(err, "list "+table, errors.CodeInternal)
	}
	defer rows.Close()

	var out []ReleaseRename
	for rows.Next() {
		var r ReleaseRename
		if err := rows.Scan(&r.ReleaseID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// insertRename writes one rename row, refusing baseline rows outside versionID.
func insertRename(ctx context.Context, q execer, sys naming.System, kind SymbolKind, versionID, baselineID, releaseID int64, name string) error {
	table, column, err := LayerTable(sys, kind)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.Newf(errors.CodeValidationError, "empty %s %s name", sys, kind)
	}
	op := "record " + string(sys) + " " + string(kind) + " rename"

	var res sql.Result
	if sys.ReleaseScoped() {
		res, err = q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(name, %s, mcp_version)
SELECT ?, b.id, ? FROM %s b WHERE b.id = ? AND b.minecraft_version = ?`, table, column, BaselineTable(kind)),
			name, releaseID, baselineID, versionID)
	} else {
		res, err = q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(name, %s)
SELECT ?, b.id FROM %s b WHERE b.id = ? AND b.minecraft_version = ?`, table, column, BaselineTable(kind)),
			name, baselineID, versionID)
	}
	if err != nil {
		return errors.AddContext(classify(err, op, errors.CodeDuplicateRename), errors.CtxSymbol, baselineID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return scopeMismatch(op, BaselineTable(kind), baselineID)
	}
	return nil
}

// classRenames maps obf class names to their sys names within a version.
func classRenames(ctx context.Context, q execer, sys naming.System, versionID int64) (map[string]string, error) {
	table, column, err := LayerTable(sys, KindClass)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT o.name, r.name FROM obf_classes o
JOIN %s r ON r.%s = o.id
WHERE o.minecraft_version = ?`, table, column), versionID)
	if err != nil {
		return nil, classify(err, "load "+table, errors.CodeInternal)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var obf, renamed string
		if err := rows.Scan(&obf, &renamed); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[obf] = renamed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
