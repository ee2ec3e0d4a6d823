package archive

import (
	"context"

	"go.uber.org/zap"

	"github.com/queelius/arkiv/pkg/types"
)

// Files written and recognized next to the collection files.
const (
	ReadmeFile   = "README.md"
	SchemaFile   = "schema.yaml"
	ManifestFile = "manifest.json"
)

// Identity keys under which the README is kept in the store.
const (
	keyFrontmatter = "readme_frontmatter"
	keyBody        = "readme_body"
)

// Store is the part of the materialized store an archive is moved through.
// *sqlite.Backend implements it.
type Store interface {
	ImportFile(ctx context.Context, path, collection string, curated *types.CollectionSchema) (types.CollectionSchema, error)
	ExportCollection(ctx context.Context, collection string) ([]types.Record, types.CollectionSchema, error)
	Collections(ctx context.Context) ([]string, error)
	SetIdentity(ctx context.Context, values map[string]string) error
	Identity(ctx context.Context) (map[string]string, error)
}

// Catalog is the read-only view of the store that describes an archive.
type Catalog interface {
	identityReader
	Collections(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, collection string) (types.NamedSchema, error)
}

type identityReader interface {
	Identity(ctx context.Context) (map[string]string, error)
}

// Result reports what an import or export touched.
type Result struct {
	Collections  []CollectionResult `json:"collections"`
	TotalRecords int                `json:"total_records"`
}

// CollectionResult reports one collection of a Result.
type CollectionResult struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	RecordCount int    `json:"record_count"`
}

func (r *Result) add(name, file string, count int) {
	r.Collections = append(r.Collections, CollectionResult{Name: name, File: file, RecordCount: count})
	r.TotalRecords += count
}

type options struct {
	logger *zap.Logger
}

// Option configures an import or export.
type Option func(*options)

// WithLogger sets the logger for skipped files and progress.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
