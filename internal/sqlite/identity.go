package sqlite

import (
	"context"
	"fmt"
)

// SetIdentity stores archive-level key/value pairs in _metadata, replacing
// existing values for the same keys. Other keys are left untouched.
func (b *Backend) SetIdentity(ctx context.Context, values map[string]string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(true); err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning identity update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("preparing identity update: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("storing identity %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Identity returns every archive-level key/value pair.
func (b *Backend) Identity(ctx context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkLocked(false); err != nil {
		return nil, err
	}

	rows, err := b.ro.QueryContext(ctx, "SELECT key, value FROM _metadata")
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key string
		var value *string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		if value != nil {
			out[key] = *value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	return out, nil
}
