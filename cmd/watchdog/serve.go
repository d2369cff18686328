package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/keyhouse-ops/watchdog/internal/agent"
	"github.com/keyhouse-ops/watchdog/internal/server"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var addr string
	var httpToken string
	var withTimer bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook endpoint, with an optional periodic fallback timer",
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

			srv, err := server.New(&server.Config{
				Addr:   addr,
				Token:  httpToken,
				Logger: slog.Default(),
			}, a, a.Users(), a.Checkpoint(), a.Journal())
			if err != nil {
				return err
			}

			eg, egCtx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				return srv.Start(egCtx)
			})
			if withTimer {
				eg.Go(func() error {
					return a.RunPeriodic(egCtx)
				})
			}

			if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	serveCmd.Flags().StringVarP(&addr, "http-addr", "a", "localhost:7978", "Address to bind the webhook server")
	serveCmd.Flags().StringVarP(&httpToken, "http-token", "t", "", "Bearer token guarding the webhook server")
	serveCmd.Flags().BoolVar(&withTimer, "timer", true, "Also run reconciliation on the configured interval")

	return serveCmd
}
