package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queelius/arkiv/pkg/types"
)

// newTestBackend attaches a writable backend on a fresh database file.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		DatabasePath: filepath.Join(t.TempDir(), "archive.db"),
	}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func TestBackend_Attach(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "archive.db")
	config := types.Config{DatabasePath: dbPath}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	defer b.Detach()

	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "database file not created")
	assert.Equal(t, dbPath, b.Path())

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  types.Config
		wantErr error
	}{
		{"empty path", types.Config{}, types.ErrDatabaseEmpty},
		{"in memory", types.Config{DatabasePath: ":memory:"}, types.ErrDatabaseInMemory},
		{"negative threshold", types.Config{DatabasePath: "x.db", MaxEnumValues: -1}, types.ErrEnumThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBackend().Attach(tt.config)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBackend_Detach(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach should not error")

	_, err := b.Info(ctx)
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.Resync(ctx, "notes", nil, nil)
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackend_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	config := types.Config{DatabasePath: filepath.Join(t.TempDir(), "archive.db")}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	_, err := b.Resync(ctx, "notes", []types.Record{{Content: types.StringPtr("a")}}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	require.NoError(t, b.Attach(config))
	defer b.Detach()
	info, err := b.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.TotalRecords)
}

func TestBackend_ReadOnly(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	w := NewBackend()
	require.NoError(t, w.Attach(types.Config{DatabasePath: dbPath}))
	_, err := w.Resync(ctx, "notes", []types.Record{{Content: types.StringPtr("a")}}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Detach())

	r := NewBackend()
	require.NoError(t, r.Attach(types.Config{DatabasePath: dbPath, ReadOnly: true}))
	defer r.Detach()

	rows, err := r.Query(ctx, "SELECT content FROM records")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"content": "a"}}, rows)

	_, err = r.Resync(ctx, "notes", nil, nil)
	assert.ErrorIs(t, err, types.ErrReadOnly)
	assert.ErrorIs(t, r.SetIdentity(ctx, map[string]string{"k": "v"}), types.ErrReadOnly)
}

func TestBackend_ReadOnlyMissingFile(t *testing.T) {
	err := NewBackend().Attach(types.Config{
		DatabasePath: filepath.Join(t.TempDir(), "missing.db"),
		ReadOnly:     true,
	})
	assert.ErrorIs(t, err, types.ErrDatabaseNotFound)
}

func TestBackend_AttachNotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.jsonl")
	content := strings.Repeat(`{"content": "this is not a database"}`+"\n", 20)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for _, readOnly := range []bool{false, true} {
		err := NewBackend().Attach(types.Config{DatabasePath: path, ReadOnly: readOnly})
		assert.ErrorIs(t, err, types.ErrNotDatabase, "read_only=%v", readOnly)
	}
}

func TestDSN(t *testing.T) {
	rw := dsn("/tmp/archive.db", false)
	assert.True(t, strings.HasPrefix(rw, "file:/tmp/archive.db?"))
	assert.Contains(t, rw, "journal_mode")
	assert.NotContains(t, rw, "mode=ro")
	assert.Contains(t, rw, "_txlock=immediate")

	ro := dsn("/tmp/archive.db", true)
	assert.Contains(t, ro, "mode=ro")
	assert.NotContains(t, ro, "journal_mode")
	assert.Contains(t, ro, "query_only")
}
