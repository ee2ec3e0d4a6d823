package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

// ExportCollection returns the records of collection in insertion order
// together with its stored schema.
func (b *Backend) ExportCollection(ctx context.Context, collection string) ([]types.Record, types.CollectionSchema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return nil, types.CollectionSchema{}, err
	}

	// One read transaction keeps records and schema from the same resync.
	tx, err := b.ro.BeginTx(ctx, nil)
	if err != nil {
		return nil, types.CollectionSchema{}, fmt.Errorf("beginning export of %s: %w", collection, err)
	}
	defer tx.Rollback()

	s, err := readSchema(ctx, tx, collection)
	if err != nil {
		return nil, types.CollectionSchema{}, err
	}
	records, err := readRecords(ctx, tx, collection)
	if err != nil {
		return nil, types.CollectionSchema{}, err
	}
	return records, s, nil
}

// GetSchema returns the stored schema of one collection.
func (b *Backend) GetSchema(ctx context.Context, collection string) (types.NamedSchema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return types.NamedSchema{}, err
	}

	tx, err := b.ro.BeginTx(ctx, nil)
	if err != nil {
		return types.NamedSchema{}, fmt.Errorf("reading schema of %s: %w", collection, err)
	}
	defer tx.Rollback()

	s, err := readSchema(ctx, tx, collection)
	if err != nil {
		return types.NamedSchema{}, err
	}
	return types.NamedSchema{Collection: collection, CollectionSchema: s}, nil
}

// Schemas returns the stored schema of every collection.
func (b *Backend) Schemas(ctx context.Context) (map[string]types.CollectionSchema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return nil, err
	}

	tx, err := b.ro.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reading schemas: %w", err)
	}
	defer tx.Rollback()

	names, err := collectionNames(ctx, tx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.CollectionSchema, len(names))
	for _, name := range names {
		s, err := readSchema(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

// Collections returns the collection names in the order they were first
// imported.
func (b *Backend) Collections(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return nil, err
	}

	tx, err := b.ro.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer tx.Rollback()
	return collectionNames(ctx, tx)
}

// Info summarizes the store: total records and the size of each collection.
func (b *Backend) Info(ctx context.Context) (types.Info, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return types.Info{}, err
	}

	rows, err := b.ro.QueryContext(ctx, "SELECT name, record_count FROM _collections ORDER BY rowid")
	if err != nil {
		return types.Info{}, fmt.Errorf("reading collections: %w", err)
	}
	defer rows.Close()

	info := types.Info{Collections: make(map[string]types.CollectionInfo)}
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return types.Info{}, fmt.Errorf("scanning collections: %w", err)
		}
		info.Collections[name] = types.CollectionInfo{RecordCount: count}
		info.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		return types.Info{}, fmt.Errorf("reading collections: %w", err)
	}
	return info, nil
}

func collectionNames(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM _collections ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collections: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// readSchema loads the stored schema of collection. Returns
// ErrCollectionNotFound if the collection was never imported.
func readSchema(ctx context.Context, tx *sql.Tx, collection string) (types.CollectionSchema, error) {
	s := types.NewCollectionSchema()
	err := tx.QueryRowContext(ctx,
		"SELECT record_count FROM _collections WHERE name = ?", collection).Scan(&s.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CollectionSchema{}, fmt.Errorf("%w: %s", types.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("reading collection %s: %w", collection, err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT key_path, type, count, sample_values, example, description
FROM _schema
WHERE collection = ?
ORDER BY key_path`, collection)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("reading schema of %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, typ    string
			entry       types.SchemaEntry
			values      sql.NullString
			example     sql.NullString
			description sql.NullString
		)
		if err := rows.Scan(&key, &typ, &entry.Count, &values, &example, &description); err != nil {
			return types.CollectionSchema{}, fmt.Errorf("scanning schema of %s: %w", collection, err)
		}
		entry.Type = types.ValueType(typ)
		entry.Description = description.String
		if entry.Values, err = decodeValues(values); err != nil {
			return types.CollectionSchema{}, fmt.Errorf("decoding values of %s.%s: %w", collection, key, err)
		}
		if entry.Example, err = decodeValue(example); err != nil {
			return types.CollectionSchema{}, fmt.Errorf("decoding example of %s.%s: %w", collection, key, err)
		}
		s.MetadataKeys[key] = entry
	}
	if err := rows.Err(); err != nil {
		return types.CollectionSchema{}, fmt.Errorf("reading schema of %s: %w", collection, err)
	}
	return s, nil
}

// readRecords loads the records of collection in insertion order.
func readRecords(ctx context.Context, tx *sql.Tx, collection string) ([]types.Record, error) {
	rows, err := tx.QueryContext(ctx, `SELECT mimetype, uri, content, timestamp, metadata
FROM records
WHERE collection = ?
ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("reading records of %s: %w", collection, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var (
			mimetype, uri, content, timestamp sql.NullString
			metadata                          sql.NullString
		)
		if err := rows.Scan(&mimetype, &uri, &content, &timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scanning records of %s: %w", collection, err)
		}
		rec := types.Record{
			Mimetype:  stringPtr(mimetype),
			URI:       stringPtr(uri),
			Content:   stringPtr(content),
			Timestamp: stringPtr(timestamp),
		}
		if metadata.Valid {
			if rec.Metadata, err = jsonl.UnmarshalMetadata([]byte(metadata.String)); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s record %d: %w", collection, len(records)+1, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records of %s: %w", collection, err)
	}
	return records, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// decodeValues parses a JSON value list written by encodeValues.
func decodeValues(s sql.NullString) ([]any, error) {
	if !s.Valid {
		return nil, nil
	}
	var values []any
	if err := decodeJSON(s.String, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return schema.NormalizeAll(values), nil
}

// decodeValue parses a JSON value written by encodeValue.
func decodeValue(s sql.NullString) (any, error) {
	if !s.Valid {
		return nil, nil
	}
	var v any
	if err := decodeJSON(s.String, &v); err != nil {
		return nil, err
	}
	return schema.Normalize(v), nil
}

func decodeJSON(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(v)
}
