package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
)

// searchBatch bounds the ids bound into one outward query, well under
// SQLite's host parameter limit.
const searchBatch = 500

// SearchQuery matches class names of one system against a glob. '/' is the
// separator, so "net/minecraft/*" stays in one package and "**/Entity*"
// matches at any depth.
type SearchQuery struct {
	Version   string
	System    naming.System
	Pattern   string
	ReleaseID int64
	Systems   []naming.System
	Limit     int
}

// Search resolves every class whose name in q.System matches q.Pattern,
// ordered by that name. The result is capped at the resolver's search limit.
func (r *Resolver) Search(ctx context.Context, q SearchQuery) ([]*CrossReference, error) {
	if !q.System.Valid() {
		return nil, errors.Newf(errors.CodeValidationError, "unknown naming system %q", q.System)
	}
	pattern := strings.TrimSpace(q.Pattern)
	if pattern == "" {
		return nil, errors.New(errors.CodeValidationError, "search pattern is required")
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid search pattern %q", pattern))
	}
	limit := q.Limit
	if limit <= 0 || limit > r.searchLimit {
		limit = r.searchLimit
	}

	version, err := r.src.Version(ctx, q.Version)
	if err != nil {
		return nil, err
	}
	if q.ReleaseID != 0 {
		if _, err := r.release(ctx, q.ReleaseID, version.ID); err != nil {
			return nil, err
		}
	}

	nameExpr := "c.name"
	join := ""
	if q.System != naming.Obf {
		nameExpr = "COALESCE(r.name, c.name)"
		join = fmt.Sprintf("LEFT JOIN %s_classes r ON r.obf_class = c.id", q.System.ClassSystem())
	}
	rows, err := r.src.QueryContext(ctx, fmt.Sprintf(`SELECT c.id, %s AS name FROM obf_classes c
%s
WHERE c.minecraft_version = ?
ORDER BY name`, nameExpr, join), version.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search classes")
	}
	var ids []any
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan class name: %w", err)
		}
		if g.Match(name) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate class names: %w", err)
	}
	_ = rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	systems := q.Systems
	if len(systems) == 0 {
		systems = naming.AllSystems
	}
	systems = naming.Ordered(append([]naming.System{naming.Obf, q.System}, systems...))
	var xrefs []*CrossReference
	for start := 0; start < len(ids); start += searchBatch {
		chunk := ids[start:min(start+searchBatch, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		query, args := newOutward(mappingdb.KindClass, systems, q.ReleaseID).build("c.id IN ("+placeholders+")", chunk...)
		found, err := r.collect(ctx, mappingdb.KindClass, systems, q.ReleaseID, query, args)
		if err != nil {
			return nil, err
		}
		xrefs = append(xrefs, found...)
	}

	order := make(map[int64]int, len(ids))
	for i, id := range ids {
		order[id.(int64)] = i
	}
	sorted := make([]*CrossReference, len(ids))
	for _, x := range xrefs {
		sorted[order[x.BaselineID]] = x
	}
	out := sorted[:0]
	for _, x := range sorted {
		if x != nil {
			out = append(out, x)
		}
	}
	r.logger.Debug("class search", "pattern", pattern, "system", q.System, "matches", len(out))
	return out, nil
}
