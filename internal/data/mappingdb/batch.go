package mappingdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/engine/descriptor"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/shared/observability"
)

// batch is one exclusive write transaction. It holds the store's write lock
// from begin until Commit or Rollback, so a goroutine holding a batch must
// not start another write on the same store.
type batch struct {
	id      uuid.UUID
	kind    string
	store   *Store
	tx      *sql.Tx
	ctx     context.Context
	span    trace.Span
	started time.Time
	rows    map[string]int
	done    bool
}

func (s *Store) beginBatch(ctx context.Context, kind string, attrs ...attribute.KeyValue) (*batch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	id := uuid.New()
	ctx, span := observability.Tracer.Start(ctx, "mappingdb."+kind+"Batch",
		trace.WithAttributes(append(attrs, attribute.String("batch.id", id.String()))...))

	s.writeMu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("begin %s batch: %w", kind, err)
	}
	return &batch{
		id:      id,
		kind:    kind,
		store:   s,
		tx:      tx,
		ctx:     ctx,
		span:    span,
		started: time.Now(),
		rows:    make(map[string]int),
	}, nil
}

func (b *batch) ID() string { return b.id.String() }

func (b *batch) active() error {
	if b == nil || b.done {
		return fmt.Errorf("batch already finished")
	}
	return nil
}

func (b *batch) count(table string) { b.rows[table]++ }

func (b *batch) logAttrs() []any {
	total := 0
	for _, n := range b.rows {
		total += n
	}
	return []any{"batch", b.id.String(), "kind", b.kind, "rows", total}
}

func (b *batch) commit(logger *slog.Logger, extra ...any) error {
	if err := b.active(); err != nil {
		return err
	}
	b.done = true
	defer b.store.writeMu.Unlock()
	defer b.span.End()

	if err := b.tx.Commit(); err != nil {
		b.span.RecordError(err)
		b.span.SetStatus(codes.Error, "commit failed")
		observability.BatchRollbacksTotal.WithLabelValues(b.kind).Inc()
		return fmt.Errorf("commit %s batch: %w", b.kind, err)
	}
	b.store.bump()
	for table, n := range b.rows {
		observability.IngestedRowsTotal.WithLabelValues(table).Add(float64(n))
	}
	elapsed := time.Since(b.started)
	observability.BatchCommitDuration.WithLabelValues(b.kind).Observe(elapsed.Seconds())
	logger.Info("batch committed", append(b.logAttrs(), append(extra, "elapsed", elapsed)...)...)
	return nil
}

func (b *batch) rollback() error {
	if b == nil || b.done {
		return nil
	}
	b.done = true
	defer b.store.writeMu.Unlock()
	defer b.span.End()

	observability.BatchRollbacksTotal.WithLabelValues(b.kind).Inc()
	b.store.logger.Debug("batch rolled back", b.logAttrs()...)
	if err := b.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback %s batch: %w", b.kind, err)
	}
	return nil
}

// within parents statement work under the batch span while keeping the
// caller's deadline and cancellation.
func (b *batch) within(ctx context.Context) context.Context {
	return trace.ContextWithSpan(ctx, b.span)
}

// fail records err on the batch span and passes it through.
func (b *batch) fail(err error) error {
	if err != nil {
		b.span.RecordError(err)
	}
	return err
}

// VersionBatch writes a version's obf baseline and its srg and spigot renames.
type VersionBatch struct {
	*batch
	version SoftwareVersion
}

// BeginVersion registers a new version and opens its ingestion batch. The
// version only becomes visible if the batch commits.
func (s *Store) BeginVersion(ctx context.Context, name string) (*VersionBatch, error) {
	canonical, err := naming.CanonicalVersionName(name)
	if err != nil {
		return nil, err
	}
	b, err := s.beginBatch(ctx, "version", attribute.String("version", canonical))
	if err != nil {
		return nil, err
	}
	id, err := insertVersion(b.ctx, b.tx, canonical)
	if err != nil {
		_ = b.rollback()
		return nil, err
	}
	b.count("minecraft_versions")
	return &VersionBatch{batch: b, version: SoftwareVersion{ID: id, Name: canonical}}, nil
}

// ExtendVersion opens an ingestion batch against an already registered version.
func (s *Store) ExtendVersion(ctx context.Context, versionID int64) (*VersionBatch, error) {
	b, err := s.beginBatch(ctx, "version", attribute.Int64("version.id", versionID))
	if err != nil {
		return nil, err
	}
	v, err := versionByID(b.ctx, b.tx, versionID)
	if err != nil {
		_ = b.rollback()
		return nil, err
	}
	return &VersionBatch{batch: b, version: v}, nil
}

func (b *VersionBatch) Version() SoftwareVersion { return b.version }

func (b *VersionBatch) InsertClass(ctx context.Context, name string) (int64, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	if name == "" {
		return 0, errors.New(errors.CodeValidationError, "empty class name")
	}
	res, err := b.tx.ExecContext(ctx,
		`INSERT INTO obf_classes(name, minecraft_version) VALUES (?, ?)`, name, b.version.ID)
	if err != nil {
		return 0, b.fail(errors.AddContext(classify(err, "insert class", errors.CodeDuplicateName), errors.CtxSymbol, name))
	}
	b.count("obf_classes")
	return res.LastInsertId()
}

// InsertSignature records an obf method descriptor. The descriptor must parse.
func (b *VersionBatch) InsertSignature(ctx context.Context, obf string) (int64, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	if _, err := descriptor.ParseMethod(obf); err != nil {
		return 0, b.fail(err)
	}
	res, err := b.tx.ExecContext(ctx,
		`INSERT INTO method_signatures(obf_signature, minecraft_version) VALUES (?, ?)`, obf, b.version.ID)
	if err != nil {
		return 0, b.fail(errors.AddContext(classify(err, "insert signature", errors.CodeDuplicateName), errors.CtxSymbol, obf))
	}
	b.count("method_signatures")
	return res.LastInsertId()
}

// EnsureSignature returns the id of obf, inserting it on first use.
func (b *VersionBatch) EnsureSignature(ctx context.Context, obf string) (int64, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	existing, err := lookupSignature(ctx, b.tx, b.version.ID, obf)
	if err != nil {
		return 0, b.fail(err)
	}
	if existing != nil {
		return existing.ID, nil
	}
	return b.InsertSignature(ctx, obf)
}

// InsertMethod records an obf method. The declaring class and signature must
// belong to this batch's version.
func (b *VersionBatch) InsertMethod(ctx context.Context, classID int64, name string, signatureID int64) (int64, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	if name == "" {
		return 0, errors.New(errors.CodeValidationError, "empty method name")
	}
	res, err := b.tx.ExecContext(ctx,
		`INSERT INTO obf_methods(declaring_class, name, signature, minecraft_version) VALUES (?, ?, ?, ?)`,
		classID, name, signatureID, b.version.ID)
	if err != nil {
		return 0, b.fail(errors.AddContext(classify(err, "insert method", errors.CodeDuplicateName), errors.CtxSymbol, name))
	}
	b.count("obf_methods")
	return res.LastInsertId()
}

func (b *VersionBatch) InsertField(ctx context.Context, classID int64, name string) (int64, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	if name == "" {
		return 0, errors.New(errors.CodeValidationError, "empty field name")
	}
	res, err := b.tx.ExecContext(ctx,
		`INSERT INTO obf_fields(declaring_class, name, minecraft_version) VALUES (?, ?, ?)`,
		classID, name, b.version.ID)
	if err != nil {
		return 0, b.fail(errors.AddContext(classify(err, "insert field", errors.CodeDuplicateName), errors.CtxSymbol, name))
	}
	b.count("obf_fields")
	return res.LastInsertId()
}

func (b *VersionBatch) RecordClassRename(ctx context.Context, sys naming.System, classID int64, name string) error {
	return b.recordRename(ctx, sys, KindClass, classID, name)
}

func (b *VersionBatch) RecordMethodRename(ctx context.Context, sys naming.System, methodID int64, name string) error {
	return b.recordRename(ctx, sys, KindMethod, methodID, name)
}

func (b *VersionBatch) RecordFieldRename(ctx context.Context, sys naming.System, fieldID int64, name string) error {
	return b.recordRename(ctx, sys, KindField, fieldID, name)
}

func (b *VersionBatch) recordRename(ctx context.Context, sys naming.System, kind SymbolKind, baselineID int64, name string) error {
	if err := b.active(); err != nil {
		return err
	}
	ctx = b.within(ctx)
	if !sys.Derived() || sys.ReleaseScoped() {
		return errors.Newf(errors.CodeValidationError, "%s renames are not recorded per version", sys).
			WithContext(errors.CtxSystem, sys.String())
	}
	if err := insertRename(ctx, b.tx, sys, kind, b.version.ID, baselineID, 0, name); err != nil {
		return b.fail(err)
	}
	table, _, _ := LayerTable(sys, kind)
	b.count(table)
	return nil
}

// RemapSignatures fills sys's signature column by rewriting every obf
// descriptor of the version through sys's class renames recorded so far.
// Classes sys never renamed keep their obf name.
func (b *VersionBatch) RemapSignatures(ctx context.Context, sys naming.System) (int, error) {
	if err := b.active(); err != nil {
		return 0, err
	}
	ctx = b.within(ctx)
	if sys != naming.Srg && sys != naming.Spigot {
		return 0, errors.Newf(errors.CodeValidationError, "%s has no signature column", sys)
	}
	renames, err := classRenames(ctx, b.tx, sys, b.version.ID)
	if err != nil {
		return 0, b.fail(err)
	}

	type row struct {
		id  int64
		obf string
	}
	rows, err := b.tx.QueryContext(ctx,
		`SELECT id, obf_signature FROM method_signatures WHERE minecraft_version = ?`, b.version.ID)
	if err != nil {
		return 0, b.fail(classify(err, "load signatures", errors.CodeInternal))
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.obf); err != nil {
			_ = rows.Close()
			return 0, b.fail(fmt.Errorf("scan signature: %w", err))
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, b.fail(fmt.Errorf("iterate signatures: %w", err))
	}
	_ = rows.Close()

	column := string(sys) + "_signature"
	rename := descriptor.MapRenamer(renames)
	for _, r := range pending {
		remapped, err := descriptor.RemapMethod(r.obf, rename)
		if err != nil {
			return 0, b.fail(err)
		}
		if _, err := b.tx.ExecContext(ctx,
			`UPDATE method_signatures SET `+column+` = ? WHERE id = ?`, remapped, r.id); err != nil {
			return 0, b.fail(errors.AddContext(classify(err, "remap signature", errors.CodeDuplicateName), errors.CtxSymbol, r.obf))
		}
	}
	b.store.logger.Debug("remapped signatures", "batch", b.ID(), "system", sys.String(), "count", len(pending))
	return len(pending), nil
}

func (b *VersionBatch) Commit() error {
	return b.commit(b.store.logger, "version", b.version.Name)
}

func (b *VersionBatch) Rollback() error {
	return b.rollback()
}

// ReleaseBatch writes one mapping release's mcp renames. Commit marks the
// release loaded in the same transaction, so a partially written release is
// never observable as loaded.
type ReleaseBatch struct {
	*batch
	release MappingRelease
}

func (s *Store) BeginRelease(ctx context.Context, releaseID int64) (*ReleaseBatch, error) {
	b, err := s.beginBatch(ctx, "release", attribute.Int64("release.id", releaseID))
	if err != nil {
		return nil, err
	}
	r, err := releaseByID(b.ctx, b.tx, releaseID)
	if err != nil {
		_ = b.rollback()
		return nil, err
	}
	if r.Loaded {
		_ = b.rollback()
		return nil, errors.Newf(errors.CodeValidationError, "mapping release %s is already loaded", r.McpVersion()).
			WithContext(errors.CtxRelease, r.McpVersion().String())
	}
	return &ReleaseBatch{batch: b, release: r}, nil
}

func (b *ReleaseBatch) Release() MappingRelease { return b.release }

func (b *ReleaseBatch) RecordMethodRename(ctx context.Context, methodID int64, name string) error {
	return b.recordRename(ctx, KindMethod, methodID, name)
}

func (b *ReleaseBatch) RecordFieldRename(ctx context.Context, fieldID int64, name string) error {
	return b.recordRename(ctx, KindField, fieldID, name)
}

func (b *ReleaseBatch) recordRename(ctx context.Context, kind SymbolKind, baselineID int64, name string) error {
	if err := b.active(); err != nil {
		return err
	}
	ctx = b.within(ctx)
	err := insertRename(ctx, b.tx, naming.Mcp, kind, b.release.VersionID, baselineID, b.release.ID, name)
	if err != nil {
		return b.fail(errors.AddContext(err, errors.CtxRelease, b.release.McpVersion().String()))
	}
	table, _, _ := LayerTable(naming.Mcp, kind)
	b.count(table)
	return nil
}

func (b *ReleaseBatch) Commit() error {
	if err := b.active(); err != nil {
		return err
	}
	if err := markLoaded(b.ctx, b.tx, b.release.ID); err != nil {
		err = b.fail(err)
		_ = b.rollback()
		return err
	}
	b.release.Loaded = true
	return b.commit(b.store.logger, "release", b.release.McpVersion().String())
}

func (b *ReleaseBatch) Rollback() error {
	return b.rollback()
}
