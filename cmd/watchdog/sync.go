package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keyhouse-ops/watchdog/internal/agent"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Perform one reconciliation run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := configFromViper()
			if err != nil {
				return err
			}

			a, err := agent.New(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Run(cmd.Context()); err != nil {
				slog.Error("sync failed", "error", err)
				return err
			}
			return nil
		},
	}
}
