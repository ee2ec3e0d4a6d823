package cli

import (
	"github.com/spf13/cobra"

	"github.com/queelius/arkiv/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "schema <file.jsonl|db>",
		Short: "Show the metadata schema of a JSONL file or database",
		Long: `Schema prints the metadata schema as JSON. For a JSONL file the schema is
discovered from its records; for a database the stored schema of every
collection (or only --collection) is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if isJSONL(input) {
				s, err := schema.DiscoverFile(input, schema.WithMaxEnumValues(a.maxEnumValues()))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s.MetadataKeys)
			}

			backend, err := a.openDatabase(input, "schema")
			if err != nil {
				return err
			}
			defer backend.Detach()

			if collection != "" {
				s, err := backend.GetSchema(cmd.Context(), collection)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s)
			}
			schemas, err := backend.Schemas(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schemas)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "only show this collection")
	return cmd
}
