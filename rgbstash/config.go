// Package rgbstash implements the Stash (C2): the persistent store of
// schemas, contracts (genesis), state transitions, anchors and bundles,
// with queries by contract, by outpoint, and by opout. The config and
// open/migrate flow follows a Config/DefaultConfig/InitDatabase pattern
// adapted to RGB's simpler opid-keyed append-only log.
package rgbstash

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Config selects the storage backend plus a path, trimmed to the single
// pure-Go sqlite backend this wallet ships with.
type Config struct {
	// DBPath is the sqlite database file path; Validate rejects an empty
	// path.
	DBPath string

	// SkipMigrations disables automatic schema creation, for callers
	// that manage migrations out of band.
	SkipMigrations bool
}

// DefaultConfig returns a default configuration using an in-memory
// database, useful for tests and ephemeral sessions.
func DefaultConfig() *Config {
	return &Config{DBPath: ":memory:"}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("rgbstash: DBPath must not be empty (use \":memory:\")")
	}
	return nil
}

// OpenDB opens the sqlite database and applies the schema unless
// SkipMigrations is set.
func OpenDB(cfg *Config) (*sql.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("rgbstash: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if !cfg.SkipMigrations {
		if err := applyMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("rgbstash: migrate: %w", err)
		}
	}
	return db, nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schemas (
	schema_id BLOB PRIMARY KEY,
	blob BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS genesis (
	contract_id BLOB PRIMARY KEY,
	blob BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS transitions (
	opid BLOB PRIMARY KEY,
	contract_id BLOB NOT NULL,
	blob BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS anchors (
	txid BLOB PRIMARY KEY,
	blob BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS bundles (
	contract_id BLOB NOT NULL,
	txid BLOB NOT NULL,
	blob BLOB NOT NULL,
	PRIMARY KEY (contract_id, txid)
);
CREATE TABLE IF NOT EXISTS outpoint_index (
	txid BLOB NOT NULL,
	vout INTEGER NOT NULL,
	contract_id BLOB NOT NULL,
	opid BLOB NOT NULL,
	assignment_type INTEGER NOT NULL,
	output_index INTEGER NOT NULL,
	PRIMARY KEY (txid, vout, opid, output_index)
);
CREATE TABLE IF NOT EXISTS consumed_opouts (
	opid BLOB NOT NULL,
	assignment_type INTEGER NOT NULL,
	output_index INTEGER NOT NULL,
	PRIMARY KEY (opid, assignment_type, output_index)
);
`

func applyMigrations(db *sql.DB) error {
	_, err := db.Exec(schemaV1)
	return err
}
