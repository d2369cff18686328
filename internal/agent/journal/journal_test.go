package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_Empty(t *testing.T) {
	j := openTestJournal(t)

	run, err := j.LastRun()
	require.NoError(t, err)
	assert.Nil(t, run)

	runs, err := j.RecentRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestJournal_RecordRun(t *testing.T) {
	j := openTestJournal(t)

	now := time.Now().UTC().Truncate(time.Second)
	run := &Run{
		StartedAt:  now,
		FinishedAt: now.Add(2 * time.Second),
		Mode:       ModeIncremental,
		BaseCommit: "abc123",
		HeadCommit: "def456",
		Applied:    3,
		Skipped:    1,
		Failed:     1,
	}
	letters := []DeadLetter{
		{Project: "p1", Provider: "aws", Hash: "h1", Kind: "added", Error: "group not found"},
	}

	require.NoError(t, j.RecordRun(run, letters))
	assert.NotZero(t, run.ID)

	last, err := j.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, run.ID, last.ID)
	assert.Equal(t, "def456", last.HeadCommit)
	assert.Equal(t, 3, last.Applied)
	assert.Equal(t, 1, last.Failed)

	got, err := j.DeadLetters(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Project)
	assert.Equal(t, run.ID, got[0].RunID)
	assert.Equal(t, "group not found", got[0].Error)
}

func TestJournal_RecentRunsOrder(t *testing.T) {
	j := openTestJournal(t)

	now := time.Now().UTC()
	for i, head := range []string{"c1", "c2", "c3"} {
		run := &Run{
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i)*time.Minute + time.Second),
			Mode:       ModeFull,
			HeadCommit: head,
		}
		require.NoError(t, j.RecordRun(run, nil))
	}

	runs, err := j.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c3", runs[0].HeadCommit)
	assert.Equal(t, "c2", runs[1].HeadCommit)
}
