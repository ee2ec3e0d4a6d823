package sqlite

import (
	"database/sql"
	"fmt"
)

// Store DDL. records.metadata, _schema.sample_values, _schema.example and
// _schema.curated_values hold JSON text.
const (
	createRecords = `CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY,
    collection TEXT NOT NULL,
    mimetype TEXT,
    uri TEXT,
    content TEXT,
    timestamp TEXT,
    metadata TEXT
);`

	// _schema keeps the merged schema of every collection. description and
	// curated_values are the curated overlay; they survive a resync that is
	// not given a curated schema.
	createSchemaTable = `CREATE TABLE IF NOT EXISTS _schema (
    collection TEXT NOT NULL,
    key_path TEXT NOT NULL,
    type TEXT NOT NULL,
    count INTEGER NOT NULL,
    sample_values TEXT,
    example TEXT,
    description TEXT,
    curated_values TEXT,
    PRIMARY KEY (collection, key_path)
);`

	createCollections = `CREATE TABLE IF NOT EXISTS _collections (
    name TEXT PRIMARY KEY,
    record_count INTEGER NOT NULL,
    sync_id TEXT NOT NULL,
    synced_at TEXT NOT NULL
);`

	createMetadata = `CREATE TABLE IF NOT EXISTS _metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);`
)

// Index DDL for common queries.
const (
	idxRecordsCollection = `CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);`
	idxRecordsMimetype   = `CREATE INDEX IF NOT EXISTS idx_records_mimetype ON records(mimetype);`
	idxRecordsTimestamp  = `CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createRecords,
	createSchemaTable,
	createCollections,
	createMetadata,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxRecordsCollection,
	idxRecordsMimetype,
	idxRecordsTimestamp,
}

// createSchema creates any missing tables and indexes in one transaction.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
	}
	return tx.Commit()
}
