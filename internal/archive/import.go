package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

// ImportReadme imports every collection file listed in the README's
// contents. Paths are relative to the README; the collection is named after
// the file stem. A schema.yaml next to the README supplies the curated
// schema of each collection it names. The README itself is stored so that
// Export can restore it. Listed files that do not exist are skipped.
func ImportReadme(ctx context.Context, store Store, path string, opts ...Option) (Result, error) {
	o := newOptions(opts)

	readme, err := LoadReadme(path)
	if err != nil {
		return Result{}, err
	}
	if err := storeReadme(ctx, store, readme); err != nil {
		return Result{}, err
	}

	dir := filepath.Dir(path)
	curated, err := loadCurated(filepath.Join(dir, SchemaFile))
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, entry := range readme.Contents() {
		if err := importOne(ctx, store, dir, entry.Path, curated, nil, &res, o); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ImportManifest imports the collection files of a legacy manifest. The
// schema embedded for a collection acts as its curated schema, layered under
// any schema.yaml found next to the manifest. The manifest is stored as
// README front matter.
func ImportManifest(ctx context.Context, store Store, path string, opts ...Option) (Result, error) {
	o := newOptions(opts)

	m, err := LoadManifest(path)
	if err != nil {
		return Result{}, err
	}
	if err := storeReadme(ctx, store, m.Readme()); err != nil {
		return Result{}, err
	}

	dir := filepath.Dir(path)
	curated, err := loadCurated(filepath.Join(dir, SchemaFile))
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, c := range m.Collections {
		if c.File == "" {
			continue
		}
		if err := importOne(ctx, store, dir, c.File, curated, c.Schema, &res, o); err != nil {
			return res, err
		}
	}
	return res, nil
}

// importOne resyncs the collection stored in dir/file.
func importOne(ctx context.Context, store Store, dir, file string, curated map[string]types.CollectionSchema, embedded *types.CollectionSchema, res *Result, o options) error {
	path := filepath.Join(dir, file)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		o.logger.Warn("listed collection file missing, skipping", zap.String("file", path))
		return nil
	}

	name := jsonl.CollectionName(path)
	var cs *types.CollectionSchema
	if embedded != nil {
		cs = embedded
	}
	if s, ok := curated[name]; ok {
		if cs != nil {
			merged := schema.Overlay(*cs, s)
			cs = &merged
		} else {
			cs = &s
		}
	}

	s, err := store.ImportFile(ctx, path, name, cs)
	if err != nil {
		return err
	}
	res.add(name, file, s.RecordCount)
	o.logger.Info("collection imported",
		zap.String("collection", name),
		zap.Int("records", s.RecordCount),
	)
	return nil
}

// loadCurated reads an optional schema.yaml.
func loadCurated(path string) (map[string]types.CollectionSchema, error) {
	schemas, err := schema.LoadYAML(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return schemas, err
}

func storeReadme(ctx context.Context, store Store, r Readme) error {
	values := map[string]string{}
	if len(r.Frontmatter) > 0 {
		fm, err := marshalFrontmatter(r.Frontmatter)
		if err != nil {
			return err
		}
		values[keyFrontmatter] = string(fm)
	}
	if r.Body != "" {
		values[keyBody] = r.Body
	}
	if len(values) == 0 {
		return nil
	}
	if err := store.SetIdentity(ctx, values); err != nil {
		return fmt.Errorf("storing README: %w", err)
	}
	return nil
}

// loadReadme rebuilds the stored README. A store without one yields an
// empty Readme.
func loadReadme(ctx context.Context, store identityReader) (Readme, error) {
	values, err := store.Identity(ctx)
	if err != nil {
		return Readme{}, fmt.Errorf("loading README: %w", err)
	}
	fm, err := parseFrontmatter(values[keyFrontmatter])
	if err != nil {
		return Readme{}, fmt.Errorf("loading README: %w", err)
	}
	return Readme{Frontmatter: fm, Body: values[keyBody]}, nil
}
