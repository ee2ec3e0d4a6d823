package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/queelius/arkiv/internal/paths"
	"github.com/queelius/arkiv/internal/sqlite"
	"github.com/queelius/arkiv/pkg/types"
)

// newLogger builds the zap logger for level, writing to stderr. debug
// switches to a development logger.
func newLogger(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// isJSONL reports whether path names a JSONL file rather than a database.
func isJSONL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}

// isDatabaseFile reports whether path carries a database file extension.
func isDatabaseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// requireDatabase rejects JSONL and manifest files passed where a database
// is expected, with a hint on how to import them.
func requireDatabase(path, command string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jsonl" && ext != ".json" {
		return nil
	}
	name := filepath.Base(path)
	return userError(fmt.Errorf("%w: %s is a JSONL file, not a SQLite database.\nImport it first:\n  arkiv import %s --db %s\n  arkiv %s %s ...",
		types.ErrNotDatabase, name, name, paths.DefaultDatabaseName, command, paths.DefaultDatabaseName))
}

// attachBackend opens the database at path. The caller must defer
// backend.Detach().
func (a *app) attachBackend(path string, readOnly bool) (*sqlite.Backend, error) {
	cfg := types.Config{
		DatabasePath:  path,
		MaxEnumValues: a.maxEnumValues(),
		ReadOnly:      readOnly,
	}
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach %s: %w", path, err)
	}
	return backend, nil
}

// openDatabase attaches a read-only backend for a command that takes an
// existing database argument.
func (a *app) openDatabase(path, command string) (*sqlite.Backend, error) {
	if err := requireDatabase(path, command); err != nil {
		return nil, err
	}
	return a.attachBackend(path, true)
}

// resolveDatabase returns the database for --db, config.yaml or the default.
func (a *app) resolveDatabase(flag string) (string, error) {
	path, err := paths.ResolveDatabase(flag, a.config.GetString(cfgKeyDatabase))
	if err != nil {
		return "", sysError(fmt.Errorf("resolve database: %w", err))
	}
	return path, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
