// Package cli implements the macaw command tree: global flag registration,
// configuration loading, logger initialisation, and the run subcommand that
// drives the battery end to end.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macaw-metabolics/macaw/internal/config"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    int
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

// GetCLIContext extracts the CLIContext installed by persistentPreRun.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("cli context not initialised")
	}
	return cc, nil
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "macaw",
		Short: "MACAW — consistency tests for genome-scale metabolic models",
		Long: "MACAW runs a battery of structural and flux-based consistency tests\n" +
			"(dead-end, dilution, diphosphate, duplicate, loop) against a\n" +
			"genome-scale metabolic model and groups the flagged reactions into\n" +
			"pathways of related problems.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file (default: environment only)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level override: debug|info|warn|error")
	flags.IntVarP(&opts.Verbose, "verbose", "v", 1, "verbosity: 0 silent, 1 default, 2 per-solve detail")

	cmd.AddCommand(newRunCommand())
	return cmd
}

// persistentPreRun loads configuration and builds the logger, storing both
// in the command context for subcommands.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if cmd.Flags().Changed("verbose") {
		cfg.Tests.Verbose = opts.Verbose
		level = logging.VerbosityLevel(opts.Verbose)
	}
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &CLIContext{
		Config: cfg,
		Logger: logger,
	}))
	return nil
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
