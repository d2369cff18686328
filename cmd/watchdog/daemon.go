package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keyhouse-ops/watchdog/internal/agent"
	"github.com/keyhouse-ops/watchdog/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run reconciliation periodically until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("watchdog", "version", version.Short())

			cfg, err := configFromViper()
			if err != nil {
				return err
			}

			a, err := agent.New(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RunPeriodic(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
