// Package cli implements the arkiv command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/paths"
	"github.com/queelius/arkiv/pkg/arkiv"
	"github.com/queelius/arkiv/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	debug     bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags  rootFlags
	config *viper.Viper
	logger *zap.Logger
}

// NewRootCmd creates the top-level "arkiv" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "arkiv",
		Short: "JSONL archives in, SQL out",
		Long: `arkiv materializes JSONL archives of personal data into a queryable
SQLite database, discovers the shape of their metadata, and exports the
database back to JSONL, README.md and schema.yaml.`,
		Version:       arkiv.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().BoolVar(&a.flags.debug, "debug", false, "log at debug level")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return userError(err)
	})

	root.AddCommand(newVersionCmd())
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newDetectCmd())
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(stderr, "Error:", msg)
	}
	return exitCode(err)
}

// init loads config.yaml and builds the logger.
func (a *app) init() error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.config, err = loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.logger, err = newLogger(a.config.GetString(cfgKeyLogLevel), a.flags.debug)
	if err != nil {
		return userError(err)
	}
	return nil
}

// exitError carries an explicit exit code. An exitError with a nil err
// exits without printing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }

func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// userErrors are the sentinels caused by bad input rather than the system.
var userErrors = []error{
	types.ErrNotDatabase,
	types.ErrNotArchive,
	types.ErrDatabaseNotFound,
	types.ErrCollectionNotFound,
	types.ErrInvalidCollection,
	types.ErrMutatingQuery,
	types.ErrEmptyQuery,
	types.ErrDatabaseEmpty,
	types.ErrDatabaseInMemory,
	types.ErrEnumThreshold,
	fs.ErrNotExist,
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	if isUsageError(err) {
		return exitUserError
	}
	return exitSysError
}

// isUsageError reports whether err came from cobra rejecting the command line.
func isUsageError(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command") ||
		strings.HasPrefix(err.Error(), "accepts ") ||
		strings.HasPrefix(err.Error(), "requires at least")
}
