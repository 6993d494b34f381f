package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"demski/internal/config"
	"demski/internal/logging"
	"demski/internal/store"
	"demski/internal/types"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "demski",
	Short: "Estimate logical priors by Demski sampling",
	Long: `demski estimates the probability of a statement from a set of variable
declarations and background knowledge.

Each sample draws a random complete model consistent with the background:
variables are visited in random order and each is assigned a random value
when that value is still consistent, the forced value otherwise. The prior
is the fraction of samples consistent with the target. Additional knowledge
conditions the samples by discarding the inconsistent ones.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "demski.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Run history database (overrides config)")

	rootCmd.AddCommand(runCmd, batchCmd, closureCmd, updateCmd, historyCmd)
}

// setup loads configuration and initializes logging for every command.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return &types.ConfigError{Reason: "cannot load configuration", Err: err}
	}
	if dbPath != "" {
		c.Store.Path = dbPath
		c.Store.Enabled = true
	}
	if verbose {
		c.Logging.Level = "debug"
		c.Logging.DebugMode = true
	}
	if err := logging.Initialize(c.Logging.Options()); err != nil {
		return &types.ConfigError{Reason: "cannot initialize logging", Err: err}
	}

	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = c
	return nil
}

// openStore opens the configured run history. It returns nil when the
// store is disabled and required is false.
func openStore(required bool) (*store.RunStore, error) {
	if !cfg.Store.Enabled {
		if required {
			return nil, types.NewConfigError("run history is disabled (set store.enabled or pass --db)")
		}
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// exitCode maps an error to the process status: 2 for bad input or
// configuration, 1 otherwise.
func exitCode(err error) int {
	if types.IsFatal(err) {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}
