package mappingdb

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"

	"mcmappings/internal/core/errors"
	"mcmappings/internal/engine/naming"
	"mcmappings/internal/shared/observability"
)

// RegisterSoftwareVersion records a game version under its canonical name.
func (s *Store) RegisterSoftwareVersion(ctx context.Context, name string) (int64, error) {
	canonical, err := naming.CanonicalVersionName(name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.write(ctx, "register software version", func(tx *sql.Tx) error {
		id, err = insertVersion(ctx, tx, canonical)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("registered software version", "version", canonical, "id", id)
	return id, nil
}

func insertVersion(ctx context.Context, q execer, canonical string) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO minecraft_versions(name) VALUES (?)`, canonical)
	if err != nil {
		return 0, errors.AddContext(classify(err, "register software version", errors.CodeDuplicateName), errors.CtxVersion, canonical)
	}
	return res.LastInsertId()
}

// RegisterMappingRelease records an mcp release for a version. Releases start
// unloaded.
func (s *Store) RegisterMappingRelease(ctx context.Context, versionID int64, value uint32, snapshot bool) (int64, error) {
	var id int64
	err := s.write(ctx, "register mapping release", func(tx *sql.Tx) error {
		if _, err := versionByID(ctx, tx, versionID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO mcp_versions(value, snapshot, minecraft_version, loaded) VALUES (?, ?, ?, 0)`,
			value, snapshot, versionID)
		if err != nil {
			return errors.AddContext(classify(err, "register mapping release", errors.CodeDuplicateRelease),
				errors.CtxRelease, naming.McpVersion{Value: value, Channel: channelOf(snapshot)}.String())
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MarkLoaded flags a release as fully written. Repeating it is a no-op.
func (s *Store) MarkLoaded(ctx context.Context, releaseID int64) error {
	return s.write(ctx, "mark release loaded", func(tx *sql.Tx) error {
		return markLoaded(ctx, tx, releaseID)
	})
}

func markLoaded(ctx context.Context, q execer, releaseID int64) error {
	res, err := q.ExecContext(ctx, `UPDATE mcp_versions SET loaded = 1 WHERE id = ? AND loaded = 0`, releaseID)
	if err != nil {
		return classify(err, "mark release loaded", errors.CodeInternal)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark release loaded: %w", err)
	}
	if n == 1 {
		observability.ReleasesLoadedTotal.Inc()
		return nil
	}
	_, err = releaseByID(ctx, q, releaseID)
	return err
}

// DeleteSoftwareVersion removes a version and everything anchored on it.
func (s *Store) DeleteSoftwareVersion(ctx context.Context, name string) error {
	canonical, err := naming.CanonicalVersionName(name)
	if err != nil {
		return err
	}
	err = s.write(ctx, "delete software version", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM minecraft_versions WHERE name = ?`, canonical)
		if err != nil {
			return classify(err, "delete software version", errors.CodeInternal)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete software version: %w", err)
		}
		if n == 0 {
			return unknownVersion(canonical)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("deleted software version", "version", canonical)
	return nil
}

// Version returns the version registered under name, in any spelling that
// canonicalises to it.
func (s *Store) Version(ctx context.Context, name string) (SoftwareVersion, error) {
	canonical, err := naming.CanonicalVersionName(name)
	if err != nil {
		return SoftwareVersion{}, err
	}
	v := SoftwareVersion{Name: canonical}
	err = s.db.QueryRowContext(ctx, `SELECT id FROM minecraft_versions WHERE name = ?`, canonical).Scan(&v.ID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return SoftwareVersion{}, unknownVersion(canonical)
	}
	if err != nil {
		return SoftwareVersion{}, classify(err, "load software version", errors.CodeInternal)
	}
	return v, nil
}

func versionByID(ctx context.Context, q execer, id int64) (SoftwareVersion, error) {
	v := SoftwareVersion{ID: id}
	err := q.QueryRowContext(ctx, `SELECT name FROM minecraft_versions WHERE id = ?`, id).Scan(&v.Name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return SoftwareVersion{}, unknownVersion(id)
	}
	if err != nil {
		return SoftwareVersion{}, classify(err, "load software version", errors.CodeInternal)
	}
	return v, nil
}

// ListSoftwareVersions returns every version, oldest first.
func (s *Store) ListSoftwareVersions(ctx context.Context) ([]SoftwareVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM minecraft_versions`)
	if err != nil {
		return nil, classify(err, "list software versions", errors.CodeInternal)
	}
	defer rows.Close()

	var out []SoftwareVersion
	for rows.Next() {
		var v SoftwareVersion
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan software version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate software versions: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := naming.ParseMinecraftVersion(out[i].Name)
		b, errB := naming.ParseMinecraftVersion(out[j].Name)
		if errA != nil || errB != nil {
			return out[i].Name < out[j].Name
		}
		return a.Compare(b) < 0
	})
	return out, nil
}

func (s *Store) Release(ctx context.Context, id int64) (MappingRelease, error) {
	return releaseByID(ctx, s.db, id)
}

func releaseByID(ctx context.Context, q execer, id int64) (MappingRelease, error) {
	r := MappingRelease{ID: id}
	err := q.QueryRowContext(ctx,
		`SELECT value, snapshot, minecraft_version, loaded FROM mcp_versions WHERE id = ?`, id).
		Scan(&r.Value, &r.Snapshot, &r.VersionID, &r.Loaded)
	if stderrors.Is(err, sql.ErrNoRows) {
		return MappingRelease{}, errors.Newf(errors.CodeUnknownRelease, "mapping release %d does not exist", id).
			WithContext(errors.CtxRelease, id)
	}
	if err != nil {
		return MappingRelease{}, classify(err, "load mapping release", errors.CodeInternal)
	}
	return r, nil
}

// ReleaseFor looks a release up by its published spelling within a version.
func (s *Store) ReleaseFor(ctx context.Context, versionID int64, v naming.McpVersion) (MappingRelease, error) {
	r := MappingRelease{VersionID: versionID, Value: v.Value, Snapshot: v.Snapshot()}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, loaded FROM mcp_versions WHERE minecraft_version = ? AND value = ? AND snapshot = ?`,
		versionID, v.Value, v.Snapshot()).Scan(&r.ID, &r.Loaded)
	if stderrors.Is(err, sql.ErrNoRows) {
		return MappingRelease{}, errors.Newf(errors.CodeUnknownRelease, "mapping release %s does not exist", v).
			WithContext(errors.CtxRelease, v.String()).
			WithContext(errors.CtxVersion, versionID)
	}
	if err != nil {
		return MappingRelease{}, classify(err, "load mapping release", errors.CodeInternal)
	}
	return r, nil
}

// ListMappingReleases returns the releases of a version, stable before
// snapshot and newest first within each channel.
func (s *Store) ListMappingReleases(ctx context.Context, versionID int64) ([]MappingRelease, error) {
	if _, err := versionByID(ctx, s.db, versionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, snapshot, loaded FROM mcp_versions
WHERE minecraft_version = ?
ORDER BY snapshot ASC, value DESC`, versionID)
	if err != nil {
		return nil, classify(err, "list mapping releases", errors.CodeInternal)
	}
	defer rows.Close()

	var out []MappingRelease
	for rows.Next() {
		r := MappingRelease{VersionID: versionID}
		if err := rows.Scan(&r.ID, &r.Value, &r.Snapshot, &r.Loaded); err != nil {
			return nil, fmt.Errorf("scan mapping release: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mapping releases: %w", err)
	}
	return out, nil
}

func unknownVersion(ref any) error {
	return errors.Newf(errors.CodeUnknownVersion, "software version %v does not exist", ref).
		WithContext(errors.CtxVersion, ref)
}

func channelOf(snapshot bool) naming.McpChannel {
	if snapshot {
		return naming.ChannelSnapshot
	}
	return naming.ChannelStable
}
