package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(tmp string) *Config {
	return &Config{
		BaseURL:  "https://api.github.com/repos/acme/keyhouse/contents",
		Token:    "ghp_test",
		Hostname: "aws",
		StateDir: tmp,
	}
}

func TestConfig_Validate_Defaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := validConfig(tmp)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBranch, cfg.Branch)
	assert.Equal(t, DefaultUserHomeRoot, cfg.UserHomeRoot)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.True(t, filepath.IsAbs(cfg.StateDir))
	assert.Equal(t, filepath.Join(tmp, "base_commit.txt"), cfg.CheckpointPath())
	assert.Equal(t, filepath.Join(tmp, "journal.db"), cfg.JournalPath())
}

func TestConfig_Validate_Errors(t *testing.T) {
	tmp := t.TempDir()

	t.Run("missing base url", func(t *testing.T) {
		cfg := validConfig(tmp)
		cfg.BaseURL = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoBaseURL)
	})

	t.Run("bad base url scheme", func(t *testing.T) {
		cfg := validConfig(tmp)
		cfg.BaseURL = "ftp://keyhouse.internal"
		assert.ErrorIs(t, cfg.Validate(), ErrBadBaseURL)
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := validConfig(tmp)
		cfg.Token = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoToken)
	})

	t.Run("missing hostname", func(t *testing.T) {
		cfg := validConfig(tmp)
		cfg.Hostname = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoHostname)
	})
}

func TestConfig_SaveLoad(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")

	cfg := validConfig(tmp)
	cfg.Interval = 30 * time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
	assert.Equal(t, cfg.Token, loaded.Token)
	assert.Equal(t, cfg.Hostname, loaded.Hostname)
	assert.Equal(t, 30*time.Second, loaded.Interval)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_Load_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
