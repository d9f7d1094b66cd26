// Package cli implements the bulkdump command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	// Timezone data for bulk.timezone on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/bulkdump/internal/logging"
	"github.com/mesh-intelligence/bulkdump/internal/paths"
	"github.com/mesh-intelligence/bulkdump/pkg/bulkdump"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
	exitEmpty     = 3
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	logLevel  string
	logFormat string
}

// env is the per-invocation state filled in by the root PersistentPreRunE.
type env struct {
	flags     rootFlags
	configDir string
	v         *viper.Viper
	cfg       types.Config
	log       *logrus.Logger
	stderr    io.Writer
}

// usageError marks errors caused by bad command-line usage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// userErrors are sentinels that indicate bad input rather than a system
// failure.
var userErrors = []error{
	types.ErrSourceURI,
	types.ErrUnsupportedProtocol,
	types.ErrInvalidTable,
	types.ErrInvalidPageSize,
	types.ErrInvalidPace,
	types.ErrInvalidDelimiter,
	types.ErrInvalidEnclosure,
	types.ErrIndexEmpty,
	types.ErrInvalidTimezone,
	types.ErrInvalidColumn,
	types.ErrConflictingClass,
	types.ErrMalformedDate,
	types.ErrMalformedNumber,
	types.ErrInvalidHeader,
	logging.ErrUnknownFormat,
	logging.ErrUnknownLevel,
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, types.ErrEmptyTable) {
		return exitEmpty
	}
	var ue usageError
	if errors.As(err, &ue) {
		return exitUserError
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// NewRootCmd creates the top-level "bulkdump" command with global flags
// and all subcommands registered. Diagnostics go to stderr.
func NewRootCmd(stderr io.Writer) *cobra.Command {
	e := &env{stderr: stderr}

	root := &cobra.Command{
		Use:   "bulkdump",
		Short: "Export SQL tables to CSV and convert CSV to bulk-JSON",
		Long: "bulkdump exports a database table to delimited text in paced pages,\n" +
			"and converts CSV files into newline-delimited bulk-indexing JSON.",
		Version: bulkdump.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd)
		},
	}
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&e.flags.configDir, "config-dir", "", "configuration directory (default: $(CWD)/.bulkdump or the user config dir)")
	root.PersistentFlags().StringVar(&e.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&e.flags.logFormat, "log-format", "", "log format (text, json)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(e))
	root.AddCommand(newConfigCmd(e))
	root.AddCommand(newExportCmd(e))
	root.AddCommand(newBulkJSONCmd(e))

	return root
}

// load resolves the config directory, reads configuration, and builds the
// logger for the running command.
func (e *env) load(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(e.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	e.configDir = dir

	v, err := loadConfig(dir, cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		return err
	}
	e.v, e.cfg = v, cfg

	logger, err := logging.New(cfg.Log, e.stderr)
	if err != nil {
		return err
	}
	e.log = logger
	logger.WithField("config_dir", dir).Debug("configuration loaded")
	return nil
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stderr)
	root.SetOut(stdout)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil && code != exitEmpty {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return code
}

// Execute runs the root command against the process arguments and exits
// with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
