package cli

import (
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <db> <sql>",
		Short: "Run a read-only SQL query",
		Long: `Query runs a SELECT (or WITH ... SELECT) statement against the database
and prints the rows as a JSON array of objects. Statements that would
modify the database are rejected.

Example:
  arkiv query archive.db "SELECT json_extract(metadata, '$.role') AS role, COUNT(*) AS n FROM records GROUP BY role"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openDatabase(args[0], "query")
			if err != nil {
				return err
			}
			defer backend.Detach()

			rows, err := backend.Query(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
}
