// Package agent wires the watchdog together: the keyhouse client, the host
// identity layer, the checkpoint store, the run journal and the
// reconciliation engine, with an advisory lock so runs never overlap.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/keyhouse-ops/watchdog/internal/agent/checkpoint"
	"github.com/keyhouse-ops/watchdog/internal/agent/config"
	"github.com/keyhouse-ops/watchdog/internal/agent/hostusers"
	"github.com/keyhouse-ops/watchdog/internal/agent/journal"
	"github.com/keyhouse-ops/watchdog/internal/agent/reconcile"
	"github.com/keyhouse-ops/watchdog/internal/keyhouse"
	"github.com/keyhouse-ops/watchdog/internal/utils"
)

var ErrRunInProgress = errors.New("agent: another run is in progress")

type Agent struct {
	config *config.Config
	kh     *keyhouse.Client
	users  hostusers.Manager
	ckpt   *checkpoint.Store
	jnl    *journal.Journal
	engine *reconcile.Engine
	flock  *flock.Flock
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := utils.EnsureDir(cfg.StateDir); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	kh := keyhouse.New(&keyhouse.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Branch:  cfg.Branch,
		Logger:  logger,
	})

	jnl, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	users := hostusers.NewClient(cfg.UserHomeRoot, logger)
	ckpt := checkpoint.NewStore(cfg.CheckpointPath())

	return &Agent{
		config: cfg,
		kh:     kh,
		users:  users,
		ckpt:   ckpt,
		jnl:    jnl,
		engine: reconcile.NewEngine(cfg, kh, users, ckpt, jnl, logger),
		flock:  flock.New(cfg.LockPath()),
		logger: logger,
	}, nil
}

func (a *Agent) Close() {
	a.kh.Close()
	if err := a.jnl.Close(); err != nil {
		a.logger.Warn("failed to close journal", "error", err)
	}
}

func (a *Agent) Users() hostusers.Manager      { return a.users }
func (a *Agent) Checkpoint() *checkpoint.Store { return a.ckpt }
func (a *Agent) Journal() *journal.Journal     { return a.jnl }

// Run performs one reconciliation run under the advisory lock. A concurrent
// run (this process or another) makes it return ErrRunInProgress instead of
// waiting.
func (a *Agent) Run(ctx context.Context) error {
	locked, err := a.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return ErrRunInProgress
	}
	defer func() {
		if err := a.flock.Unlock(); err != nil {
			a.logger.Warn("failed to release run lock", "error", err)
		}
	}()

	return a.engine.Run(ctx)
}

// RunPeriodic runs immediately and then on every interval tick until ctx is
// cancelled. Individual run failures are logged and retried on the next tick;
// the checkpoint guarantees the failed range is picked up again.
func (a *Agent) RunPeriodic(ctx context.Context) error {
	a.logger.Info("watchdog daemon start",
		"base_url", a.config.BaseURL,
		"hostname", a.config.Hostname,
		"interval", a.config.Interval)

	run := func() {
		if err := a.Run(ctx); err != nil {
			switch {
			case errors.Is(err, ErrRunInProgress):
				a.logger.Warn("skipping run, another is in progress")
			case errors.Is(err, context.Canceled):
			default:
				a.logger.Error("run failed", "error", err)
			}
		}
	}

	run()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watchdog daemon stop")
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
