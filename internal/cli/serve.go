package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <db>",
		Short: "Serve a database over a read-only HTTP API",
		Long: `Serve exposes the manifest, the schema and read-only SQL queries of the
database over HTTP:

  GET  /health
  GET  /api/v1/manifest
  GET  /api/v1/schema
  GET  /api/v1/schema/{collection}
  POST /api/v1/query   {"sql": "SELECT ..."}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openDatabase(args[0], "serve")
			if err != nil {
				return err
			}
			defer backend.Detach()

			if addr == "" {
				addr = a.config.GetString(cfgKeyServeAddr)
			}
			srv := server.NewServer(backend, addr, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return sysError(err)
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				a.logger.Warn("shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config serve.addr)")
	return cmd
}
