// Package resolver answers cross-reference queries: given a symbol's identity
// in one naming system it finds the obf baseline row and joins outward to
// every requested rename layer.
package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/descriptor"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/shared/observability"
)

// Source is the read side of the mapping store.
type Source interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Generation() uint64
	Version(ctx context.Context, name string) (mappingdb.SoftwareVersion, error)
	Release(ctx context.Context, id int64) (mappingdb.MappingRelease, error)
}

type Options struct {
	CacheEnabled bool
	CacheSize    int
	SearchLimit  int
	Logger       *slog.Logger
}

type Resolver struct {
	src         Source
	cache       *resultCache
	searchLimit int
	logger      *slog.Logger
}

func New(src Source, opts Options) (*Resolver, error) {
	if src == nil {
		return nil, fmt.Errorf("resolver source is required")
	}
	r := &Resolver{src: src, searchLimit: opts.SearchLimit, logger: opts.Logger}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.searchLimit <= 0 {
		r.searchLimit = 200
	}
	if opts.CacheEnabled {
		size := opts.CacheSize
		if size <= 0 {
			size = 4096
		}
		cache, err := newResultCache(size)
		if err != nil {
			return nil, fmt.Errorf("create resolver cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Query identifies one symbol in Source. Class is required; Member names the
// field or method; Signature is the method descriptor in Source's form.
// ReleaseID selects the mcp release to resolve through and is required when
// Source is mcp and Kind is not a class. Systems restricts the output; empty
// means every system. Obf and Source are always included.
type Query struct {
	Version   string
	Source    naming.System
	Kind      mappingdb.SymbolKind
	Class     string
	Member    string
	Signature string
	ReleaseID int64
	Systems   []naming.System
}

func (q Query) validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Newf(errors.CodeValidationError, format, args...).
			WithContext(errors.CtxOperation, "resolve")
	}
	if !q.Source.Valid() {
		return invalid("unknown source system %q", q.Source)
	}
	if !q.Kind.Valid() {
		return invalid("unknown symbol kind %q", q.Kind)
	}
	for _, sys := range q.Systems {
		if !sys.Valid() {
			return invalid("unknown target system %q", sys)
		}
	}
	if strings.TrimSpace(q.Class) == "" {
		return invalid("class name is required")
	}
	if q.Kind == mappingdb.KindClass {
		return nil
	}
	if strings.TrimSpace(q.Member) == "" {
		return invalid("%s name is required", q.Kind)
	}
	if q.Kind == mappingdb.KindMethod {
		if _, err := descriptor.ParseMethod(q.Signature); err != nil {
			return err
		}
	}
	if q.Source.ReleaseScoped() && q.ReleaseID == 0 {
		return invalid("%s %s lookups need a mapping release", q.Source, q.Kind)
	}
	return nil
}

func (q Query) outputSystems() []naming.System {
	systems := q.Systems
	if len(systems) == 0 {
		systems = naming.AllSystems
	}
	return naming.Ordered(append([]naming.System{naming.Obf, q.Source}, systems...))
}

func (q Query) cacheKey(version string) string {
	parts := make([]string, 0, 4)
	for _, s := range q.outputSystems() {
		parts = append(parts, string(s))
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s",
		version, q.Source, q.Kind, q.Class, q.Member, q.Signature, q.ReleaseID, strings.Join(parts, ","))
}

// Resolve returns the cross-reference for q, or nil when the source identity
// does not exist. A symbol that exists but was never renamed in a requested
// system resolves with a NULL for that system.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*CrossReference, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("kind", string(q.Kind)),
		attribute.String("source", string(q.Source)),
		attribute.String("version", q.Version),
	))
	defer span.End()
	start := time.Now()

	x, err := r.resolve(ctx, q)
	observability.ResolveDuration.WithLabelValues(string(q.Kind)).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		span.RecordError(err)
		observability.ResolveOutcomesTotal.WithLabelValues(string(q.Kind), "error").Inc()
	case x == nil:
		observability.ResolveOutcomesTotal.WithLabelValues(string(q.Kind), "missing").Inc()
	default:
		observability.ResolveOutcomesTotal.WithLabelValues(string(q.Kind), "found").Inc()
	}
	return x, err
}

func (r *Resolver) resolve(ctx context.Context, q Query) (*CrossReference, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	canonical, err := naming.CanonicalVersionName(q.Version)
	if err != nil {
		return nil, err
	}

	generation := r.src.Generation()
	key := q.cacheKey(canonical)
	if x, ok := r.cache.get(key, generation); ok {
		return x, nil
	}

	version, err := r.src.Version(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if q.ReleaseID != 0 {
		if _, err := r.release(ctx, q.ReleaseID, version.ID); err != nil {
			return nil, err
		}
	}

	ids, err := r.identify(ctx, q, version.ID)
	if err != nil {
		return nil, err
	}
	var x *CrossReference
	switch len(ids) {
	case 0:
		r.logger.Debug("source identity not found", "version", canonical, "source", q.Source, "class", q.Class, "member", q.Member)
	case 1:
		x, err = r.byBaselineID(ctx, q.Kind, ids[0], q.ReleaseID, q.outputSystems())
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.CodeAmbiguousMapping, "%d %s rows match %s %s %s", len(ids), q.Kind, q.Source, q.Class, q.Member).
			WithContext(errors.CtxSystem, q.Source.String()).
			WithContext(errors.CtxVersion, canonical)
	}
	r.cache.add(key, generation, x)
	return x, nil
}

// ResolveID resolves a baseline row directly by id, skipping the source
// lookup. It returns nil when no such row exists.
func (r *Resolver) ResolveID(ctx context.Context, kind mappingdb.SymbolKind, baselineID, releaseID int64, systems []naming.System) (*CrossReference, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.ResolveID", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int64("baseline.id", baselineID),
	))
	defer span.End()

	if !kind.Valid() {
		return nil, errors.Newf(errors.CodeValidationError, "unknown symbol kind %q", kind)
	}
	if len(systems) == 0 {
		systems = naming.AllSystems
	}
	systems = naming.Ordered(append([]naming.System{naming.Obf}, systems...))

	// An unknown release fails before the row lookup, whether or not the row exists.
	var rel mappingdb.MappingRelease
	if releaseID != 0 {
		var err error
		if rel, err = r.src.Release(ctx, releaseID); err != nil {
			return nil, err
		}
	}
	x, err := r.byBaselineID(ctx, kind, baselineID, releaseID, systems)
	if err != nil || x == nil {
		return nil, err
	}
	if releaseID != 0 && rel.VersionID != x.VersionID {
		if _, err := r.release(ctx, releaseID, x.VersionID); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (r *Resolver) ResolveClassID(ctx context.Context, id, releaseID int64, systems ...naming.System) (*CrossReference, error) {
	return r.ResolveID(ctx, mappingdb.KindClass, id, releaseID, systems)
}

func (r *Resolver) ResolveFieldID(ctx context.Context, id, releaseID int64, systems ...naming.System) (*CrossReference, error) {
	return r.ResolveID(ctx, mappingdb.KindField, id, releaseID, systems)
}

func (r *Resolver) ResolveMethodID(ctx context.Context, id, releaseID int64, systems ...naming.System) (*CrossReference, error) {
	return r.ResolveID(ctx, mappingdb.KindMethod, id, releaseID, systems)
}

// release loads a release and checks it belongs to versionID.
func (r *Resolver) release(ctx context.Context, releaseID, versionID int64) (mappingdb.MappingRelease, error) {
	rel, err := r.src.Release(ctx, releaseID)
	if err != nil {
		return mappingdb.MappingRelease{}, err
	}
	if rel.VersionID != versionID {
		return mappingdb.MappingRelease{}, errors.Newf(errors.CodeForeignScopeMismatch,
			"mapping release %s belongs to another software version", rel.McpVersion()).
			WithContext(errors.CtxRelease, rel.McpVersion().String()).
			WithContext(errors.CtxVersion, versionID)
	}
	if !rel.Loaded {
		r.logger.Debug("mapping release not loaded, mcp names unavailable", "release", rel.McpVersion().String())
	}
	return rel, nil
}

func (r *Resolver) identify(ctx context.Context, q Query, versionID int64) ([]int64, error) {
	query, args := identify(q, versionID)
	rows, err := r.src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "identify source symbol"), errors.CtxOperation, "resolve")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source identities: %w", err)
	}
	return ids, nil
}

func (r *Resolver) byBaselineID(ctx context.Context, kind mappingdb.SymbolKind, id, releaseID int64, systems []naming.System) (*CrossReference, error) {
	alias := "m"
	if kind == mappingdb.KindClass {
		alias = "c"
	}
	query, args := newOutward(kind, systems, releaseID).build(alias+".id = ?", id)
	xrefs, err := r.collect(ctx, kind, systems, releaseID, query, args)
	if err != nil {
		return nil, err
	}
	switch len(xrefs) {
	case 0:
		return nil, nil
	case 1:
		return xrefs[0], nil
	}
	return nil, errors.Newf(errors.CodeAmbiguousMapping, "%d cross-reference rows for baseline %s %d", len(xrefs), kind, id)
}

func (r *Resolver) collect(ctx context.Context, kind mappingdb.SymbolKind, systems []naming.System, releaseID int64, query string, args []any) ([]*CrossReference, error) {
	rows, err := r.src.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "join rename layers"), errors.CtxOperation, "resolve")
	}
	defer rows.Close()

	var out []*CrossReference
	for rows.Next() {
		x, err := scanRow(rows, kind, systems, releaseID)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cross-references: %w", err)
	}
	return out, nil
}

// CachedEntries reports how many results the cache holds.
func (r *Resolver) CachedEntries() int { return r.cache.len() }

// Purge drops every cached result.
func (r *Resolver) Purge() { r.cache.purge() }
