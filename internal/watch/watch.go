// Package watch keeps a store in step with an archive directory: whenever a
// <collection>.jsonl file is written, the collection is resynced from it.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

// DefaultDebounce is how long a file must stay quiet before it is imported.
const DefaultDebounce = 400 * time.Millisecond

const (
	collectionExt = ".jsonl"
	schemaFile    = "schema.yaml"
)

// Importer resyncs one collection from a JSONL file.
type Importer interface {
	ImportFile(ctx context.Context, path, collection string, curated *types.CollectionSchema) (types.CollectionSchema, error)
}

// Result reports one resync triggered by the watcher.
type Result struct {
	Collection  string
	Path        string
	RecordCount int
	Err         error
}

// Watcher watches one directory and resyncs collections as their files
// change. A failed resync is logged and reported; the collection keeps its
// previous state and the watcher keeps running.
type Watcher struct {
	dir      string
	store    Importer
	debounce time.Duration
	logger   *zap.Logger
	onSync   func(Result)

	mu       sync.Mutex
	ctx      context.Context
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for file events and resync outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period before a changed file is imported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithSyncHook registers fn to be called after every resync attempt.
func WithSyncHook(fn func(Result)) Option {
	return func(w *Watcher) { w.onSync = fn }
}

// NewWatcher creates a watcher over dir that imports into store.
func NewWatcher(dir string, store Importer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      filepath.Clean(dir),
		store:    store,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the directory is watched; events
// are handled in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Info("watching archive directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(ev.Name)
	if filepath.Dir(path) != w.dir {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case filepath.Base(path) == schemaFile:
		// New descriptions apply to every collection.
		w.schedule(path, w.SyncExisting)
	case isCollectionFile(path):
		w.schedule(path, func() { w.sync(path) })
	}
}

// schedule runs fn once key has been quiet for the debounce period.
func (w *Watcher) schedule(key string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[key]; ok {
		t.Stop()
	}
	w.pending[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()
		fn()
	})
}

// SyncExisting resyncs every collection file currently in the directory.
func (w *Watcher) SyncExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("listing archive directory", zap.String("dir", w.dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if isCollectionFile(path) {
			w.sync(path)
		}
	}
}

// sync resyncs the collection stored in path.
func (w *Watcher) sync(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	res := Result{Collection: jsonl.CollectionName(path), Path: path}
	curated, err := w.curated(res.Collection)
	if err != nil {
		w.logger.Warn("ignoring unreadable schema file", zap.String("dir", w.dir), zap.Error(err))
	}

	s, err := w.store.ImportFile(ctx, path, res.Collection, curated)
	if err != nil {
		res.Err = err
		w.logger.Error("resync failed",
			zap.String("collection", res.Collection),
			zap.String("path", path),
			zap.Error(err),
		)
	} else {
		res.RecordCount = s.RecordCount
		w.logger.Info("resynced collection",
			zap.String("collection", res.Collection),
			zap.Int("records", s.RecordCount),
		)
	}
	if w.onSync != nil {
		w.onSync(res)
	}
}

// curated returns the collection's entry from the directory's schema.yaml,
// or nil when there is none.
func (w *Watcher) curated(collection string) (*types.CollectionSchema, error) {
	schemas, err := schema.LoadYAML(filepath.Join(w.dir, schemaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, ok := schemas[collection]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func isCollectionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), collectionExt)
}

// Stop stops the watcher and cancels pending imports. Stop is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for key, t := range w.pending {
		t.Stop()
		delete(w.pending, key)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
