package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/archive"
)

const defaultExportDir = "./exported"

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <db>",
		Short: "Export a database to JSONL, README.md and schema.yaml",
		Long: `Export writes every collection of the database to <collection>.jsonl in
the output directory, together with a README.md describing the archive and
a schema.yaml carrying the discovered and curated schema.

Example:
  arkiv export archive.db --output ./archive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openDatabase(args[0], "export")
			if err != nil {
				return err
			}
			defer backend.Detach()

			res, err := archive.Export(cmd.Context(), backend, output, archive.WithLogger(a.logger))
			if err != nil {
				return err
			}
			a.logger.Info("export finished",
				zap.String("output", output),
				zap.Int("collections", len(res.Collections)),
				zap.Int("records", res.TotalRecords),
			)
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&output, "output", defaultExportDir, "output directory")
	return cmd
}
