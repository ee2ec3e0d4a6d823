package types

import "errors"

// Store lifecycle errors.
var (
	ErrDetached         = errors.New("store is detached")
	ErrAlreadyAttached  = errors.New("store is already attached")
	ErrReadOnly         = errors.New("store is opened read-only")
	ErrDatabaseNotFound = errors.New("database not found")
)

// Collection and query errors.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidCollection  = errors.New("invalid collection name")
	ErrMutatingQuery      = errors.New("only SELECT queries are allowed")
	ErrEmptyQuery         = errors.New("query must not be empty")
)

// Input errors reported by the command-line surface.
var (
	ErrNotDatabase = errors.New("not a SQLite database")
	ErrNotArchive  = errors.New("not a JSONL file or archive description")
)
