package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

// ValidateCollection checks that name can label a collection and be written
// back as <name>.jsonl.
func ValidateCollection(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", types.ErrInvalidCollection)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", types.ErrInvalidCollection, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", types.ErrInvalidCollection, name)
	}
	return nil
}

// Resync replaces collection with records. See ResyncSeq.
func (b *Backend) Resync(ctx context.Context, collection string, records []types.Record, curated *types.CollectionSchema) (types.CollectionSchema, error) {
	return b.ResyncSeq(ctx, collection, jsonl.Slice(records), curated)
}

// ResyncSeq replaces every row and schema entry of collection with the
// records yielded by seq and returns the merged schema now stored.
//
// The curated overlay already stored for the collection is merged into the
// discovered schema; a non-nil curated schema is layered over it first. The
// whole replacement runs in one transaction: if seq yields an error or any
// write fails, nothing is changed and the previous state stays visible.
func (b *Backend) ResyncSeq(ctx context.Context, collection string, seq iter.Seq2[types.Record, error], curated *types.CollectionSchema) (types.CollectionSchema, error) {
	if err := ValidateCollection(collection); err != nil {
		return types.CollectionSchema{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(true); err != nil {
		return types.CollectionSchema{}, err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	syncID := generateUUID()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("beginning resync of %s: %w", collection, err)
	}
	defer tx.Rollback()

	overlay, err := loadOverlay(ctx, tx, collection)
	if err != nil {
		return types.CollectionSchema{}, err
	}
	if curated != nil {
		overlay = schema.Overlay(overlay, *curated)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", collection); err != nil {
		return types.CollectionSchema{}, fmt.Errorf("clearing records of %s: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM _schema WHERE collection = ?", collection); err != nil {
		return types.CollectionSchema{}, fmt.Errorf("clearing schema of %s: %w", collection, err)
	}

	d := schema.NewDiscoverer(schema.WithMaxEnumValues(b.config.EnumThreshold()))
	if err := insertRecords(ctx, tx, collection, seq, d); err != nil {
		return types.CollectionSchema{}, err
	}

	merged := schema.Merge(d.Schema(), overlay)
	if err := insertSchema(ctx, tx, collection, merged, overlay); err != nil {
		return types.CollectionSchema{}, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO _collections (name, record_count, sync_id, synced_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    record_count = excluded.record_count,
    sync_id = excluded.sync_id,
    synced_at = excluded.synced_at`,
		collection, merged.RecordCount, syncID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("recording collection %s: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return types.CollectionSchema{}, fmt.Errorf("committing resync of %s: %w", collection, err)
	}

	b.logger.Info("collection resynced",
		zap.String("collection", collection),
		zap.String("sync_id", syncID),
		zap.Int("records", merged.RecordCount),
		zap.Int("schema_keys", len(merged.MetadataKeys)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return merged, nil
}

// ImportFile resyncs a collection from the JSONL file at path. An empty
// collection name selects the file's base name without extension.
func (b *Backend) ImportFile(ctx context.Context, path, collection string, curated *types.CollectionSchema) (types.CollectionSchema, error) {
	if collection == "" {
		collection = jsonl.CollectionName(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	s, err := b.ResyncSeq(ctx, collection, jsonl.Records(f), curated)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("importing %s: %w", path, err)
	}
	return s, nil
}

// insertRecords streams seq into the records table, feeding each record to
// d as it goes.
func insertRecords(ctx context.Context, tx *sql.Tx, collection string, seq iter.Seq2[types.Record, error], d *schema.Discoverer) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
    (collection, mimetype, uri, content, timestamp, metadata)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", collection, err)
	}
	defer stmt.Close()

	n := 0
	for rec, err := range seq {
		if err != nil {
			return fmt.Errorf("reading %s after %d records: %w", collection, n, err)
		}
		meta, err := jsonl.MarshalMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s record %d: %w", collection, n+1, err)
		}
		_, err = stmt.ExecContext(ctx, collection,
			nullString(rec.Mimetype),
			nullString(rec.URI),
			nullString(rec.Content),
			nullString(rec.Timestamp),
			nullBytes(meta),
		)
		if err != nil {
			return fmt.Errorf("inserting %s record %d: %w", collection, n+1, err)
		}
		d.Observe(rec)
		n++
	}
	return nil
}

// insertSchema writes the merged schema of collection. The curated values
// of overlay are kept alongside so later resyncs can restore them.
func insertSchema(ctx context.Context, tx *sql.Tx, collection string, merged, overlay types.CollectionSchema) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _schema
    (collection, key_path, type, count, sample_values, example, description, curated_values)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing schema insert for %s: %w", collection, err)
	}
	defer stmt.Close()

	for _, key := range merged.Keys() {
		e := merged.MetadataKeys[key]

		values, err := encodeValues(e.Values)
		if err != nil {
			return fmt.Errorf("encoding values of %s.%s: %w", collection, key, err)
		}
		example, err := encodeValue(e.Example)
		if err != nil {
			return fmt.Errorf("encoding example of %s.%s: %w", collection, key, err)
		}
		curatedValues, err := encodeValues(overlay.MetadataKeys[key].Values)
		if err != nil {
			return fmt.Errorf("encoding curated values of %s.%s: %w", collection, key, err)
		}

		_, err = stmt.ExecContext(ctx, collection, key, string(e.Type), e.Count,
			values, example, nullEmpty(e.Description), curatedValues)
		if err != nil {
			return fmt.Errorf("inserting schema entry %s.%s: %w", collection, key, err)
		}
	}
	return nil
}

// loadOverlay reads the curated overlay stored for collection: every entry
// with a description or curated values.
func loadOverlay(ctx context.Context, tx *sql.Tx, collection string) (types.CollectionSchema, error) {
	rows, err := tx.QueryContext(ctx, `SELECT key_path, type, description, curated_values
FROM _schema
WHERE collection = ?
  AND (COALESCE(description, '') != '' OR curated_values IS NOT NULL)`, collection)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("loading curated schema of %s: %w", collection, err)
	}
	defer rows.Close()

	overlay := types.NewCollectionSchema()
	for rows.Next() {
		var (
			key, typ    string
			description sql.NullString
			values      sql.NullString
		)
		if err := rows.Scan(&key, &typ, &description, &values); err != nil {
			return types.CollectionSchema{}, fmt.Errorf("scanning curated schema of %s: %w", collection, err)
		}
		entry := types.SchemaEntry{
			Type:        types.ValueType(typ),
			Description: description.String,
		}
		if entry.Values, err = decodeValues(values); err != nil {
			return types.CollectionSchema{}, fmt.Errorf("decoding curated values of %s.%s: %w", collection, key, err)
		}
		overlay.MetadataKeys[key] = entry
	}
	if err := rows.Err(); err != nil {
		return types.CollectionSchema{}, fmt.Errorf("loading curated schema of %s: %w", collection, err)
	}
	return overlay, nil
}

// encodeValues renders a value list as JSON text, or NULL when empty.
func encodeValues(values []any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// encodeValue renders a single value as JSON text, or NULL when nil.
func encodeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
