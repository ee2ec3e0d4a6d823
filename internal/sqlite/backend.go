// Package sqlite implements the materialized query store for arkiv.
//
// The JSONL files of an archive are the source of truth; the SQLite database
// is derived from them. Each collection is resynchronized as a unit: its rows
// and schema entries are replaced inside one transaction, so readers observe
// either the previous state or the new one.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/queelius/arkiv/pkg/types"
)

// busyTimeoutMillis bounds how long a connection waits on a locked database.
const busyTimeoutMillis = 5000

// Backend owns one arkiv database file.
type Backend struct {
	mu       sync.RWMutex
	writeMu  sync.Mutex // serializes write transactions
	attached bool
	config   types.Config
	db       *sql.DB
	ro       *sql.DB // read-only pool serving Query
	logger   *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for resync and lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to open a database.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens the database named by config. A writable attach creates the
// file and its parent directory when missing and ensures the store tables
// exist. A read-only attach requires the file to exist and never writes.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	path := config.DatabasePath
	if config.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, path)
			}
			return fmt.Errorf("checking %s: %w", path, err)
		}
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, config.ReadOnly))
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return classifyOpenError(path, err)
	}
	if config.ReadOnly {
		// Reading the catalog is what exposes a file that is not a database.
		if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
			db.Close()
			return classifyOpenError(path, err)
		}
	} else {
		if err := createSchema(db); err != nil {
			db.Close()
			return classifyOpenError(path, err)
		}
	}

	ro := db
	if !config.ReadOnly {
		if ro, err = openReadOnly(path); err != nil {
			db.Close()
			return err
		}
	}

	b.db = db
	b.ro = ro
	b.config = config
	b.attached = true

	b.logger.Debug("store attached",
		zap.String("database", path),
		zap.Bool("read_only", config.ReadOnly),
	)
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.ro != nil && b.ro != b.db {
		if err := b.ro.Close(); err != nil {
			return err
		}
	}
	b.ro = nil
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.logger.Debug("store detached", zap.String("database", b.config.DatabasePath))
	return nil
}

// Path returns the database path of the attached store.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DatabasePath
}

// checkLocked reports whether the store can serve an operation. The caller
// must hold b.mu.
func (b *Backend) checkLocked(write bool) error {
	if !b.attached {
		return types.ErrDetached
	}
	if write && b.config.ReadOnly {
		return types.ErrReadOnly
	}
	return nil
}

// openReadOnly opens the read-only pool of a writable store.
func openReadOnly(path string) (*sql.DB, error) {
	ro, err := sql.Open("sqlite", dsn(path, true))
	if err != nil {
		return nil, fmt.Errorf("opening %s read-only: %w", path, err)
	}
	if err := ro.Ping(); err != nil {
		ro.Close()
		return nil, classifyOpenError(path, err)
	}
	return ro, nil
}

// dsn builds a modernc.org/sqlite data source name. Writable stores use WAL
// so readers are never blocked by a resync in progress, and take the write
// lock when a transaction begins. Read-only connections are opened with
// mode=ro, which no statement can lift.
func dsn(path string, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	if readOnly {
		q.Set("mode", "ro")
		q.Add("_pragma", "query_only(1)")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "foreign_keys(1)")
		q.Set("_txlock", "immediate")
	}
	u := url.URL{Scheme: "file", Opaque: path, RawQuery: q.Encode()}
	return u.String()
}

// classifyOpenError reports files that are not SQLite databases with
// ErrNotDatabase.
func classifyOpenError(path string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_NOTADB {
		return fmt.Errorf("%w: %s", types.ErrNotDatabase, path)
	}
	return fmt.Errorf("initializing %s: %w", path, err)
}

// generateUUID generates a new UUID v7 for resync run ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
