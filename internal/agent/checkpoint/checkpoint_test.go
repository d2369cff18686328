package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "base_commit.txt"))

	commit, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, commit)
}

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "base_commit.txt"))

	require.NoError(t, s.Save("abc123"))

	commit, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", commit)

	require.NoError(t, s.Save("def456"))
	commit, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "def456", commit)
}

func TestStore_BlankMeansUninitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base_commit.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	commit, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, commit)
}
