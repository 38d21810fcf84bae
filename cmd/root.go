package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/buildtrace/internal/config"
	"github.com/fakeyudi/buildtrace/internal/logging"
)

// app holds state shared by subcommands, populated in PersistentPreRunE.
type app struct {
	cfg config.Config
	log *slog.Logger

	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{log: logging.Discard()}

	rootCmd := &cobra.Command{
		Use:          "buildtrace",
		Short:        "Turn recorded build events into trace documents and compare project state",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")

	rootCmd.AddCommand(
		newReplayCmd(a),
		newDiffCmd(a),
		newViewCmd(a),
		newSnapshotCmd(a),
	)
	return rootCmd
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
		}
		stop()
		os.Exit(1)
	}
}
