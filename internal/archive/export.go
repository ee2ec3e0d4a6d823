package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

// Export writes the whole store to dir: one <collection>.jsonl per
// collection in import order, a schema.yaml with every stored schema and a
// README.md. The README is the one stored at import time, with its contents
// list rewritten to the exported files; descriptions already recorded for a
// path are kept.
func Export(ctx context.Context, store Store, dir string, opts ...Option) (Result, error) {
	o := newOptions(opts)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	names, err := store.Collections(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	schemas := make(map[string]types.CollectionSchema, len(names))
	for _, name := range names {
		records, s, err := store.ExportCollection(ctx, name)
		if err != nil {
			return res, err
		}
		file := name + ".jsonl"
		if err := jsonl.WriteFile(filepath.Join(dir, file), records); err != nil {
			return res, err
		}
		schemas[name] = s
		res.add(name, file, len(records))
		o.logger.Debug("collection exported",
			zap.String("collection", name),
			zap.Int("records", len(records)),
		)
	}

	readme, err := loadReadme(ctx, store)
	if err != nil {
		return res, err
	}
	described := make(map[string]string)
	for _, entry := range readme.Contents() {
		described[entry.Path] = entry.Description
	}
	contents := make([]ContentEntry, 0, len(res.Collections))
	for _, c := range res.Collections {
		contents = append(contents, ContentEntry{Path: c.File, Description: described[c.File]})
	}
	readme.Frontmatter["contents"] = contents

	if err := SaveReadme(filepath.Join(dir, ReadmeFile), readme); err != nil {
		return res, err
	}
	if err := schema.SaveYAML(filepath.Join(dir, SchemaFile), schemas); err != nil {
		return res, err
	}
	return res, nil
}
