package cli

import (
	"github.com/spf13/cobra"

	"github.com/queelius/arkiv/internal/jsonl"
)

type fixResult struct {
	Fixed int    `json:"fixed"`
	File  string `json:"file"`
}

func newDetectCmd() *cobra.Command {
	var strict, fix bool
	cmd := &cobra.Command{
		Use:   "detect <file.jsonl>",
		Short: "Check whether a JSONL file is in arkiv format",
		Long: `Detect reports the record fields a JSONL file uses, unknown fields with
suggested replacements, and malformed lines. --fix copies unambiguous
aliases (url, link, href) into uri in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if fix {
				n, err := jsonl.Fix(path)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), fixResult{Fixed: n, File: path})
			}

			report, err := jsonl.Detect(path)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && len(report.Warnings) > 0 {
				return &exitError{code: exitUserError}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 if there are any warnings")
	cmd.Flags().BoolVar(&fix, "fix", false, "fix known field aliases by duplicating them (e.g. url -> uri)")
	return cmd
}
