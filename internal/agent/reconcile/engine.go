// Package reconcile drives one reconciliation run: it decides between a full
// resync and an incremental sync, turns the keyhouse commit range into change
// records, and applies each record to the host identity layer exactly once.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyhouse-ops/watchdog/internal/agent/checkpoint"
	"github.com/keyhouse-ops/watchdog/internal/agent/config"
	"github.com/keyhouse-ops/watchdog/internal/agent/diff"
	"github.com/keyhouse-ops/watchdog/internal/agent/hostusers"
	"github.com/keyhouse-ops/watchdog/internal/agent/journal"
	"github.com/keyhouse-ops/watchdog/internal/keyhouse"
)

// StateAPI is the slice of the keyhouse client the engine needs.
type StateAPI interface {
	LatestCommit(ctx context.Context) (string, error)
	HeadCommit(ctx context.Context) (string, error)
	CompareDiff(ctx context.Context, base, head string) (string, error)
	GetFile(ctx context.Context, path, ref string) (*keyhouse.FileContent, error)
	ListDir(ctx context.Context, path string) ([]keyhouse.DirEntry, error)
	Branch() string
}

var _ StateAPI = (*keyhouse.Client)(nil)

// Engine orchestrates a reconciliation run. It is single threaded: records
// are applied sequentially and the checkpoint has exactly one writer.
type Engine struct {
	cfg     *config.Config
	kh      StateAPI
	users   hostusers.Manager
	ckpt    *checkpoint.Store
	journal *journal.Journal
	logger  *slog.Logger
}

// NewEngine creates a reconciliation engine. The journal may be nil.
func NewEngine(cfg *config.Config, kh StateAPI, users hostusers.Manager, ckpt *checkpoint.Store, jnl *journal.Journal, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		kh:      kh,
		users:   users,
		ckpt:    ckpt,
		journal: jnl,
		logger:  logger,
	}
}

// Run executes one reconciliation run. A returned error means the run
// aborted with the checkpoint unchanged (or, for a checkpoint write failure,
// at its previous value); the same range is retried on the next invocation.
func (e *Engine) Run(ctx context.Context) error {
	started := time.Now().UTC()

	base, err := e.ckpt.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	var run *journal.Run
	var letters []journal.DeadLetter

	if base == "" {
		e.logger.Info("no valid checkpoint found, performing full resync")
		run, letters, err = e.fullResync(ctx)
	} else {
		run, letters, err = e.incrementalSync(ctx, base)
	}
	if err != nil {
		return err
	}

	if err := e.ckpt.Save(run.HeadCommit); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	run.StartedAt = started
	run.FinishedAt = time.Now().UTC()
	if e.journal != nil {
		if err := e.journal.RecordRun(run, letters); err != nil {
			// the journal is observability, not correctness
			e.logger.Warn("failed to record run in journal", "error", err)
		}
	}

	e.logger.Info("run complete",
		"mode", run.Mode,
		"head", run.HeadCommit,
		"applied", run.Applied,
		"skipped", run.Skipped,
		"failed", run.Failed)
	return nil
}

// incrementalSync applies the changes introduced since the checkpoint.
func (e *Engine) incrementalSync(ctx context.Context, base string) (*journal.Run, []journal.DeadLetter, error) {
	head, err := e.kh.LatestCommit(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve head commit: %w", err)
	}

	diffText, err := e.kh.CompareDiff(ctx, base, head)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch diff %s...%s: %w", base, head, err)
	}

	run := &journal.Run{Mode: journal.ModeIncremental, BaseCommit: base, HeadCommit: head}
	var letters []journal.DeadLetter

	for _, rec := range diff.Parse(diffText) {
		e.logger.Info("parsed diff record",
			"project", rec.Project, "provider", rec.Provider, "hash", rec.Hash, "kind", rec.Kind.String())

		// multi-host filtering: only apply changes addressed to this host
		if rec.Provider != e.cfg.Hostname {
			e.logger.Info("not this host, skipping", "provider", rec.Provider, "hash", rec.Hash)
			run.Skipped++
			continue
		}

		username, err := e.fetchUsername(ctx, rec, base)
		if err != nil {
			return nil, nil, err
		}
		if username == "" {
			run.Skipped++
			continue
		}

		if err := e.apply(ctx, rec, username); err != nil {
			e.logger.Error("failed to apply record",
				"project", rec.Project, "hash", rec.Hash, "kind", rec.Kind.String(), "error", err)
			run.Failed++
			letters = append(letters, journal.DeadLetter{
				Project:  rec.Project,
				Provider: rec.Provider,
				Hash:     rec.Hash,
				Kind:     rec.Kind.String(),
				Error:    err.Error(),
			})
			continue
		}
		run.Applied++
	}

	return run, letters, nil
}

// fetchUsername resolves the username mapped to the record's hash at the ref
// its kind demands. An empty result with nil error means there is nothing to
// apply for this record.
func (e *Engine) fetchUsername(ctx context.Context, rec diff.Record, base string) (string, error) {
	ref := rec.Kind.Ref(base, e.kh.Branch())

	file, err := e.kh.GetFile(ctx, "names/"+rec.Hash, ref)
	if err != nil {
		return "", fmt.Errorf("fetch names/%s@%s: %w", rec.Hash, ref, err)
	}
	if file == nil {
		return "", nil
	}

	username, err := file.Decode()
	if err != nil {
		// a record that cannot be decoded cannot be trusted
		return "", err
	}

	e.logger.Info("decoded file", "hash", rec.Hash, "ref", ref)
	return username, nil
}

// apply routes a record to the identity operation its kind demands.
func (e *Engine) apply(ctx context.Context, rec diff.Record, username string) error {
	switch rec.Kind {
	case diff.Added, diff.UserAdded:
		e.logger.Info("adding user to group", "user", username, "group", rec.Project)
		return e.users.AddUserToGroup(ctx, username, rec.Project)
	case diff.Deleted:
		e.logger.Info("removing user from group", "user", username, "group", rec.Project)
		return e.users.RemoveUserFromGroup(ctx, username, rec.Project)
	case diff.UserDeleted:
		e.logger.Info("deleting user", "user", username)
		return e.users.DeleteUser(ctx, username)
	default:
		// modifications carry no identity operation
		return nil
	}
}

// fullResync enumerates every declared grant and applies it, then records the
// branch head as the new checkpoint. Used when state was lost or never
// existed.
func (e *Engine) fullResync(ctx context.Context) (*journal.Run, []journal.DeadLetter, error) {
	run := &journal.Run{Mode: journal.ModeFull}
	var letters []journal.DeadLetter

	providers, err := e.kh.ListDir(ctx, "access")
	if err != nil {
		return nil, nil, fmt.Errorf("list access tree: %w", err)
	}

	for _, provider := range providers {
		projects, err := e.kh.ListDir(ctx, "access/"+provider.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("list access/%s: %w", provider.Name, err)
		}

		for _, project := range projects {
			hashes, err := e.kh.ListDir(ctx, "access/"+provider.Name+"/"+project.Name)
			if err != nil {
				// a single unreadable project listing should not sink the
				// whole resync
				e.logger.Error("failed to list project grants",
					"provider", provider.Name, "project", project.Name, "error", err)
				continue
			}

			for _, entry := range hashes {
				rec := diff.Record{
					Provider: provider.Name,
					Project:  project.Name,
					Hash:     entry.Name,
					Kind:     diff.Added,
				}

				username, err := e.fetchUsername(ctx, rec, "")
				if err != nil {
					return nil, nil, err
				}
				if username == "" {
					run.Skipped++
					continue
				}

				e.logger.Info("adding user to group", "user", username, "group", rec.Project)
				if err := e.users.AddUserToGroup(ctx, username, rec.Project); err != nil {
					e.logger.Error("failed to add user during resync",
						"user", username, "group", rec.Project, "error", err)
					run.Failed++
					letters = append(letters, journal.DeadLetter{
						Project:  rec.Project,
						Provider: rec.Provider,
						Hash:     rec.Hash,
						Kind:     rec.Kind.String(),
						Error:    err.Error(),
					})
					continue
				}
				run.Applied++
			}
		}
	}

	head, err := e.kh.HeadCommit(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve branch head: %w", err)
	}
	run.HeadCommit = head

	return run, letters, nil
}
