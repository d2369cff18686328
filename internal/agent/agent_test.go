package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhouse-ops/watchdog/internal/agent/config"
)

func testAgent(t *testing.T) *Agent {
	t.Helper()

	cfg := &config.Config{
		// nothing listens here; only used by tests that expect failure
		BaseURL:  "http://127.0.0.1:1/contents",
		Token:    "test-token",
		Hostname: "aws",
		StateDir: t.TempDir(),
	}
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestRun_LockedByAnotherRun(t *testing.T) {
	a := testAgent(t)

	other := flock.New(a.config.LockPath())
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	assert.ErrorIs(t, a.Run(context.Background()), ErrRunInProgress)
}

func TestRun_ReleasesLockOnFailure(t *testing.T) {
	a := testAgent(t)

	// checkpoint present, so the run needs the (unreachable) API and fails
	require.NoError(t, a.Checkpoint().Save("abc123"))
	require.Error(t, a.Run(context.Background()))

	// the lock is free again
	other := flock.New(a.config.LockPath())
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	other.Unlock()

	// checkpoint untouched by the failed run
	commit, err := a.Checkpoint().Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", commit)
}
