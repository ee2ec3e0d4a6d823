package cli

import (
	"github.com/spf13/cobra"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/internal/schema"
	"github.com/queelius/arkiv/pkg/types"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.jsonl|db>",
		Short: "Summarize a JSONL file or database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if isJSONL(input) {
				info, err := a.fileInfo(input)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), info)
			}

			backend, err := a.openDatabase(input, "info")
			if err != nil {
				return err
			}
			defer backend.Detach()

			info, err := backend.Info(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

// fileInfo summarizes a single JSONL file as a one-collection Info.
func (a *app) fileInfo(path string) (types.Info, error) {
	s, err := schema.DiscoverFile(path, schema.WithMaxEnumValues(a.maxEnumValues()))
	if err != nil {
		return types.Info{}, err
	}
	coll := types.CollectionInfo{RecordCount: s.RecordCount}
	if len(s.MetadataKeys) > 0 {
		coll.MetadataKeys = s.MetadataKeys
	}
	return types.Info{
		TotalRecords: s.RecordCount,
		Collections:  map[string]types.CollectionInfo{jsonl.CollectionName(path): coll},
	}, nil
}
