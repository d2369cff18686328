// Package server exposes the watchdog's HTTP surface: a push webhook that
// triggers a reconciliation run, a direct group-membership endpoint and a
// status view over the checkpoint and the run journal.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/keyhouse-ops/watchdog/internal/agent/checkpoint"
	"github.com/keyhouse-ops/watchdog/internal/agent/hostusers"
	"github.com/keyhouse-ops/watchdog/internal/agent/journal"
)

// Runner triggers one reconciliation run.
type Runner interface {
	Run(ctx context.Context) error
}

// Config for the HTTP surface.
type Config struct {
	// Addr to bind, e.g. "localhost:7978".
	Addr string

	// Token guards the /v1 routes. Empty is refused at construction.
	Token string

	Logger *slog.Logger
}

type Server struct {
	config *Config
	server *http.Server
	logger *slog.Logger

	runner Runner
	users  hostusers.Manager
	ckpt   *checkpoint.Store
	jnl    *journal.Journal

	// bursts of push webhooks coalesce into a single run
	sf singleflight.Group
}

var ErrNoAuthToken = errors.New("server: auth token required")

func New(cfg *Config, runner Runner, users hostusers.Manager, ckpt *checkpoint.Store, jnl *journal.Journal) (*Server, error) {
	if cfg.Token == "" {
		return nil, ErrNoAuthToken
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		logger: logger,
		runner: runner,
		users:  users,
		ckpt:   ckpt,
		jnl:    jnl,
	}
	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.setupRoutes(),
	}

	return s, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http server start", "addr", s.config.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server stop")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
