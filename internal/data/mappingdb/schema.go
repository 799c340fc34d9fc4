package mappingdb

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build knows how to apply.
const SchemaVersion = 2

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS minecraft_versions (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS mcp_versions (
  id INTEGER PRIMARY KEY,
  value INTEGER NOT NULL,
  snapshot INTEGER NOT NULL CHECK (snapshot IN (0, 1)),
  minecraft_version INTEGER NOT NULL REFERENCES minecraft_versions(id) ON DELETE CASCADE,
  loaded INTEGER NOT NULL DEFAULT 0 CHECK (loaded IN (0, 1)),
  UNIQUE (minecraft_version, value, snapshot)
);

CREATE TABLE IF NOT EXISTS method_signatures (
  id INTEGER PRIMARY KEY,
  obf_signature TEXT NOT NULL,
  srg_signature TEXT,
  spigot_signature TEXT,
  minecraft_version INTEGER NOT NULL REFERENCES minecraft_versions(id) ON DELETE CASCADE,
  UNIQUE (minecraft_version, obf_signature),
  UNIQUE (id, minecraft_version)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_method_signatures_srg ON method_signatures(minecraft_version, srg_signature);
CREATE UNIQUE INDEX IF NOT EXISTS idx_method_signatures_spigot ON method_signatures(minecraft_version, spigot_signature);

CREATE TABLE IF NOT EXISTS obf_classes (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  minecraft_version INTEGER NOT NULL REFERENCES minecraft_versions(id) ON DELETE CASCADE,
  UNIQUE (minecraft_version, name),
  UNIQUE (id, minecraft_version)
);

CREATE TABLE IF NOT EXISTS obf_methods (
  id INTEGER PRIMARY KEY,
  declaring_class INTEGER NOT NULL,
  name TEXT NOT NULL,
  signature INTEGER NOT NULL,
  minecraft_version INTEGER NOT NULL REFERENCES minecraft_versions(id) ON DELETE CASCADE,
  FOREIGN KEY (declaring_class, minecraft_version) REFERENCES obf_classes(id, minecraft_version) ON DELETE CASCADE,
  FOREIGN KEY (signature, minecraft_version) REFERENCES method_signatures(id, minecraft_version) ON DELETE CASCADE,
  UNIQUE (minecraft_version, declaring_class, name, signature)
);
CREATE INDEX IF NOT EXISTS idx_obf_methods_class ON obf_methods(declaring_class, minecraft_version);
CREATE INDEX IF NOT EXISTS idx_obf_methods_signature ON obf_methods(signature, minecraft_version);

CREATE TABLE IF NOT EXISTS obf_fields (
  id INTEGER PRIMARY KEY,
  declaring_class INTEGER NOT NULL,
  name TEXT NOT NULL,
  minecraft_version INTEGER NOT NULL REFERENCES minecraft_versions(id) ON DELETE CASCADE,
  FOREIGN KEY (declaring_class, minecraft_version) REFERENCES obf_classes(id, minecraft_version) ON DELETE CASCADE,
  UNIQUE (minecraft_version, declaring_class, name)
);
CREATE INDEX IF NOT EXISTS idx_obf_fields_class ON obf_fields(declaring_class, minecraft_version);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS srg_classes (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_class INTEGER NOT NULL UNIQUE REFERENCES obf_classes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_srg_classes_name ON srg_classes(name);

CREATE TABLE IF NOT EXISTS srg_methods (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_method INTEGER NOT NULL UNIQUE REFERENCES obf_methods(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_srg_methods_name ON srg_methods(name);

CREATE TABLE IF NOT EXISTS srg_fields (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_field INTEGER NOT NULL UNIQUE REFERENCES obf_fields(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_srg_fields_name ON srg_fields(name);

CREATE TABLE IF NOT EXISTS spigot_classes (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_class INTEGER NOT NULL UNIQUE REFERENCES obf_classes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_spigot_classes_name ON spigot_classes(name);

CREATE TABLE IF NOT EXISTS spigot_methods (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_method INTEGER NOT NULL UNIQUE REFERENCES obf_methods(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_spigot_methods_name ON spigot_methods(name);

CREATE TABLE IF NOT EXISTS spigot_fields (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_field INTEGER NOT NULL UNIQUE REFERENCES obf_fields(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_spigot_fields_name ON spigot_fields(name);

CREATE TABLE IF NOT EXISTS mcp_methods (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_method INTEGER NOT NULL REFERENCES obf_methods(id) ON DELETE CASCADE,
  mcp_version INTEGER NOT NULL REFERENCES mcp_versions(id) ON DELETE CASCADE,
  UNIQUE (mcp_version, obf_method)
);
CREATE INDEX IF NOT EXISTS idx_mcp_methods_obf ON mcp_methods(obf_method);
CREATE INDEX IF NOT EXISTS idx_mcp_methods_name ON mcp_methods(name);

CREATE TABLE IF NOT EXISTS mcp_fields (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  obf_field INTEGER NOT NULL REFERENCES obf_fields(id) ON DELETE CASCADE,
  mcp_version INTEGER NOT NULL REFERENCES mcp_versions(id) ON DELETE CASCADE,
  UNIQUE (mcp_version, obf_field)
);
CREATE INDEX IF NOT EXISTS idx_mcp_fields_obf ON mcp_fields(obf_field);
CREATE INDEX IF NOT EXISTS idx_mcp_fields_name ON mcp_fields(name);
`,
	},
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
