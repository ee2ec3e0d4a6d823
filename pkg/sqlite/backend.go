// Package sqlite provides the public API for the SQLite archive store.
// This package exposes the factory function for creating backends while
// keeping implementation details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/sqlite"
)

// Backend is a materialized query store over one SQLite file.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// WithLogger sets the logger used for store events.
func WithLogger(logger *zap.Logger) Option {
	return sqlite.WithLogger(logger)
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{DatabasePath: "archive.db"})
//	defer backend.Detach()
//	schema, err := backend.ImportFile(ctx, "conversations.jsonl", "", nil)
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}
