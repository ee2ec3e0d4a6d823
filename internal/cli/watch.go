package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep a database in sync with a directory of JSONL files",
		Long: `Watch imports every <name>.jsonl in the directory, then re-imports a
collection whenever its file is written. Editing schema.yaml re-imports
every collection. A failed import is logged and leaves that collection
as it was.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return userError(err)
			}
			if !info.IsDir() {
				return userError(&os.PathError{Op: "watch", Path: dir, Err: syscall.ENOTDIR})
			}

			dbPath, err := a.resolveDatabase(db)
			if err != nil {
				return err
			}
			backend, err := a.attachBackend(dbPath, false)
			if err != nil {
				return err
			}
			defer backend.Detach()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := watch.NewWatcher(dir, backend,
				watch.WithLogger(a.logger),
				watch.WithDebounce(a.debounce()),
			)
			if err := w.Start(ctx); err != nil {
				return sysError(err)
			}
			defer w.Stop()
			w.SyncExisting()

			a.logger.Info("watching", zap.String("dir", dir), zap.String("database", dbPath))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "database path (default: config database or ./archive.db)")
	return cmd
}
