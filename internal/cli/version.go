package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queelius/arkiv/pkg/arkiv"
)

const modulePath = "github.com/queelius/arkiv"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the arkiv version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "arkiv v%s\nmodule: %s\n", arkiv.Version, modulePath)
			return nil
		},
	}
}
