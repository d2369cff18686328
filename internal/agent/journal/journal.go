// Package journal keeps a local sqlite record of reconciliation runs and the
// individual record applications that failed. Delivery stays at-most-once:
// the journal gives failed records visibility, it does not redeliver them.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keyhouse-ops/watchdog/internal/utils"
)

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
`

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	mode        TEXT NOT NULL,
	base_commit TEXT NOT NULL DEFAULT '',
	head_commit TEXT NOT NULL DEFAULT '',
	applied     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	project    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	hash       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	error      TEXT NOT NULL
);
`

// Modes a run can execute in.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Run is one completed reconciliation run.
type Run struct {
	ID         int64     `db:"id" json:"id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Mode       string    `db:"mode" json:"mode"`
	BaseCommit string    `db:"base_commit" json:"base_commit"`
	HeadCommit string    `db:"head_commit" json:"head_commit"`
	Applied    int       `db:"applied" json:"applied"`
	Skipped    int       `db:"skipped" json:"skipped"`
	Failed     int       `db:"failed" json:"failed"`
}

// DeadLetter is one record whose identity operation failed during a run.
type DeadLetter struct {
	ID       int64  `db:"id" json:"id"`
	RunID    int64  `db:"run_id" json:"run_id"`
	Project  string `db:"project" json:"project"`
	Provider string `db:"provider" json:"provider"`
	Hash     string `db:"hash" json:"hash"`
	Kind     string `db:"kind" json:"kind"`
	Error    string `db:"error" json:"error"`
}

type Journal struct {
	db *sqlx.DB
}

// Open creates or opens the journal database at path. Use ":memory:" for an
// in-memory journal.
func Open(path string) (*Journal, error) {
	dsn := path
	if path != ":memory:" {
		if err := utils.EnsureParent(path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	if _, err := db.Exec(defaultPragma); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun inserts a completed run and its dead letters in one transaction.
func (j *Journal) RecordRun(run *Run, letters []DeadLetter) error {
	tx, err := j.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.NamedExec(`
		INSERT INTO runs (started_at, finished_at, mode, base_commit, head_commit, applied, skipped, failed)
		VALUES (:started_at, :finished_at, :mode, :base_commit, :head_commit, :applied, :skipped, :failed)`,
		run)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = runID

	for i := range letters {
		letters[i].RunID = runID
		if _, err := tx.NamedExec(`
			INSERT INTO dead_letters (run_id, project, provider, hash, kind, error)
			VALUES (:run_id, :project, :provider, :hash, :kind, :error)`,
			&letters[i]); err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
	}

	return tx.Commit()
}

// LastRun returns the most recent run, or nil when no run was recorded yet.
func (j *Journal) LastRun() (*Run, error) {
	var run Run
	err := j.db.Get(&run, `SELECT * FROM runs ORDER BY id DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(limit int) ([]Run, error) {
	runs := []Run{}
	if err := j.db.Select(&runs, `SELECT * FROM runs ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// DeadLetters returns the failed record applications of a run.
func (j *Journal) DeadLetters(runID int64) ([]DeadLetter, error) {
	letters := []DeadLetter{}
	if err := j.db.Select(&letters, `SELECT * FROM dead_letters WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, err
	}
	return letters, nil
}
