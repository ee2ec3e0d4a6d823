package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/archive"
	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/internal/sqlite"
	"github.com/queelius/arkiv/pkg/types"
)

type importFlags struct {
	db         string
	collection string
	schema     string
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import <file.jsonl|README.md|manifest.json|dir>",
		Short: "Import JSONL files into a database",
		Long: `Import materializes JSONL into the database. A JSONL file replaces the
collection named after it; a README.md or manifest.json imports every
collection it lists; a directory imports its README.md or manifest.json.

A schema.yaml next to the input (or given with --schema) supplies curated
descriptions and value lists.

Example:
  arkiv import conversations.jsonl --db archive.db
  arkiv import ./archive/README.md --db archive.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.db, "db", "", "database path (default: config database or ./archive.db)")
	cmd.Flags().StringVar(&f.collection, "collection", "", "collection name (default: file name without extension)")
	cmd.Flags().StringVar(&f.schema, "schema", "", "curated schema.yaml (default: schema.yaml next to the input)")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, input string, f importFlags) error {
	if isDatabaseFile(input) {
		return userError(fmt.Errorf("%w: %s is a database file, not a JSONL or manifest file", types.ErrNotArchive, input))
	}
	info, err := os.Stat(input)
	if err != nil {
		return userError(err)
	}
	if info.IsDir() {
		if input, err = archiveEntry(input); err != nil {
			return err
		}
	}

	dbPath, err := a.resolveDatabase(f.db)
	if err != nil {
		return err
	}
	backend, err := a.attachBackend(dbPath, false)
	if err != nil {
		return err
	}
	defer backend.Detach()

	ctx := cmd.Context()
	var res archive.Result
	switch strings.ToLower(filepath.Ext(input)) {
	case ".md":
		res, err = archive.ImportReadme(ctx, backend, input, archive.WithLogger(a.logger))
	case ".json":
		res, err = archive.ImportManifest(ctx, backend, input, archive.WithLogger(a.logger))
	default:
		res, err = a.importCollection(cmd, backend, input, f)
	}
	if err != nil {
		return err
	}

	a.logger.Info("import finished",
		zap.String("database", dbPath),
		zap.Int("collections", len(res.Collections)),
		zap.Int("records", res.TotalRecords),
	)
	return writeJSON(cmd.OutOrStdout(), res)
}

// importCollection imports one JSONL file as a collection.
func (a *app) importCollection(cmd *cobra.Command, backend *sqlite.Backend, input string, f importFlags) (archive.Result, error) {
	collection := f.collection
	if collection == "" {
		collection = jsonl.CollectionName(input)
	}
	curated, err := curatedSchema(input, f.schema, collection)
	if err != nil {
		return archive.Result{}, userError(err)
	}

	s, err := backend.ImportFile(cmd.Context(), input, collection, curated)
	if err != nil {
		return archive.Result{}, err
	}
	return archive.Result{
		Collections:  []archive.CollectionResult{{Name: collection, File: filepath.Base(input), RecordCount: s.RecordCount}},
		TotalRecords: s.RecordCount,
	}, nil
}

// archiveEntry returns the README.md or manifest.json describing dir.
func archiveEntry(dir string) (string, error) {
	for _, name := range []string{archive.ReadmeFile, archive.ManifestFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", userError(fmt.Errorf("%w: %s has no %s or %s", types.ErrNotArchive, dir, archive.ReadmeFile, archive.ManifestFile))
}

// curatedSchema returns the curated entry for collection from schemaPath,
// or from the schema.yaml next to input when schemaPath is empty.
func curatedSchema(input, schemaPath, collection string) (*types.CollectionSchema, error) {
	explicit := schemaPath != ""
	if !explicit {
		schemaPath = filepath.Join(filepath.Dir(input), archive.SchemaFile)
	}
	schemas, err := schema.LoadYAML(schemaPath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s, ok := schemas[collection]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
