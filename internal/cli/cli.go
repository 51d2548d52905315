package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spontis-app/spontis/internal/config"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// usageError marks errors caused by bad invocation rather than a failed run.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	envFile  string
	logLevel string
	dataDir  string

	stdout io.Writer
	stderr io.Writer

	cfg  *config.Config
	zone *time.Location
}

// NewRootCmd creates the root command writing to the given streams.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "spontis",
		Short: "Build the Spontis event feed",
		Long: `Collects event listings from the configured sources, cleans, deduplicates,
tags and merges them into one feed, and derives the today, tonight and
weekday heatmap views.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&a.envFile, "env", ".env", "Path to a .env file (missing file is ignored)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from SPONTIS_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Data directory (default from SPONTIS_DATA_DIR)")

	cmd.AddCommand(
		newRunCmd(a),
		newViewsCmd(a),
		newValidateCmd(a),
		newSourcesCmd(a),
		newReportCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// setup loads configuration and installs the default logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		if _, err := logger.ParseLevel(a.logLevel); err != nil {
			return &usageError{err: err}
		}
		cfg.LogLevel = a.logLevel
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}

	zone, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.SetDefault(logger.ForEnvironment(cfg.Environment, cfg.Level(), a.stderr))
	logger.Debug("Configuration loaded", logger.Fields{
		"command":     cmd.Name(),
		"environment": cfg.Environment,
		"data_dir":    cfg.DataDir,
		"timezone":    zone.String(),
	})

	a.cfg = cfg
	a.zone = zone
	return nil
}

func (a *app) storage() (*storage.Storage, error) {
	store, err := storage.New(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// Execute runs the CLI
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
