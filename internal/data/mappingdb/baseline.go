package mappingdb

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"mcmappings/internal/core/errors"
)

// Baseline lookups return nil, nil when the identity does not exist. Every
// lookup is served by one of the per-version unique indexes.

func (s *Store) LookupClass(ctx context.Context, versionID int64, name string) (*BaselineClass, error) {
	return lookupClass(ctx, s.db, versionID, name)
}

func lookupClass(ctx context.Context, q execer, versionID int64, name string) (*BaselineClass, error) {
	c := BaselineClass{VersionID: versionID, Name: name}
	err := q.QueryRowContext(ctx,
		`SELECT id FROM obf_classes WHERE minecraft_version = ? AND name = ?`, versionID, name).Scan(&c.ID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "lookup class", errors.CodeInternal)
	}
	return &c, nil
}

func (s *Store) LookupField(ctx context.Context, versionID, classID int64, name string) (*BaselineField, error) {
	f := BaselineField{VersionID: versionID, ClassID: classID, Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM obf_fields WHERE minecraft_version = ? AND declaring_class = ? AND name = ?`,
		versionID, classID, name).Scan(&f.ID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "lookup field", errors.CodeInternal)
	}
	return &f, nil
}

// LookupMethod resolves the full method identity. At most one row can match.
func (s *Store) LookupMethod(ctx context.Context, versionID, classID int64, name string, signatureID int64) (*BaselineMethod, error) {
	m := BaselineMethod{VersionID: versionID, ClassID: classID, Name: name, SignatureID: signatureID}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM obf_methods WHERE minecraft_version = ? AND declaring_class = ? AND name = ? AND signature = ?`,
		versionID, classID, name, signatureID).Scan(&m.ID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "lookup method", errors.CodeInternal)
	}
	return &m, nil
}

// LookupMethods returns every overload of name declared by classID.
func (s *Store) LookupMethods(ctx context.Context, versionID, classID int64, name string) ([]BaselineMethod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, signature FROM obf_methods WHERE minecraft_version = ? AND declaring_class = ? AND name = ? ORDER BY id`,
		versionID, classID, name)
	if err != nil {
		return nil, classify(err, "lookup methods", errors.CodeInternal)
	}
	defer rows.Close()

	var out []BaselineMethod
	for rows.Next() {
		m := BaselineMethod{VersionID: versionID, ClassID: classID, Name: name}
		if err := rows.Scan(&m.ID, &m.SignatureID); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate methods: %w", err)
	}
	return out, nil
}

// LookupSignature finds a signature by its obf descriptor.
func (s *Store) LookupSignature(ctx context.Context, versionID int64, obf string) (*Signature, error) {
	return lookupSignature(ctx, s.db, versionID, obf)
}

func lookupSignature(ctx context.Context, q execer, versionID int64, obf string) (*Signature, error) {
	sig := Signature{VersionID: versionID, Obf: obf}
	err := q.QueryRowContext(ctx,
		`SELECT id, srg_signature, spigot_signature FROM method_signatures WHERE minecraft_version = ? AND obf_signature = ?`,
		versionID, obf).Scan(&sig.ID, &sig.Srg, &sig.Spigot)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "lookup signature", errors.CodeInternal)
	}
	return &sig, nil
}

// CountBaseline returns the number of obf rows of kind in a version.
func (s *Store) CountBaseline(ctx context.Context, versionID int64, kind SymbolKind) (int, error) {
	if !kind.Valid() {
		return 0, errors.Newf(errors.CodeValidationError, "unknown symbol kind %q", kind)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+BaselineTable(kind)+` WHERE minecraft_version = ?`, versionID).Scan(&n)
	if err != nil {
		return 0, classify(err, "count "+BaselineTable(kind), errors.CodeInternal)
	}
	return n, nil
}
