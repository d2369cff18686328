package config

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/keyhouse-ops/watchdog/internal/utils"
)

var (
	DefaultConfigPath   = "/etc/watchdog/config.json"
	DefaultStateDir     = "/var/lib/watchdog"
	DefaultBranch       = "build"
	DefaultUserHomeRoot = "/opt/watchdog/users"
	DefaultInterval     = 5 * time.Minute
)

var (
	ErrNoBaseURL  = errors.New("config: keyhouse base url missing")
	ErrBadBaseURL = errors.New("config: keyhouse base url must be http(s)")
	ErrNoToken    = errors.New("config: access token missing")
	ErrNoHostname = errors.New("config: host identity missing")
)

// Config holds everything a reconciliation run needs: where the declared
// state lives, how to authenticate against it, and which host this is.
type Config struct {
	// BaseURL is the contents endpoint of the keyhouse repository,
	// e.g. https://api.github.com/repos/acme/keyhouse/contents
	BaseURL string `json:"base_url"`

	// Token is the bearer token for the keyhouse API.
	Token string `json:"token"`

	// Hostname identifies this host; only access changes addressed to it
	// are applied locally.
	Hostname string `json:"hostname"`

	// Branch is the tracked branch pointer holding current declared state.
	Branch string `json:"branch"`

	// StateDir holds the checkpoint file, the run journal and the lock file.
	StateDir string `json:"state_dir"`

	// UserHomeRoot is where managed user home directories are created.
	UserHomeRoot string `json:"user_home_root"`

	// Interval between runs in daemon mode.
	Interval time.Duration `json:"interval"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrBadBaseURL
	}
	if c.Token == "" {
		return ErrNoToken
	}
	if c.Hostname == "" {
		return ErrNoHostname
	}

	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.UserHomeRoot == "" {
		c.UserHomeRoot = DefaultUserHomeRoot
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}

	resolved, err := utils.ResolvePath(c.StateDir)
	if err != nil {
		return err
	}
	c.StateDir = resolved

	return nil
}

// CheckpointPath is where the last-processed commit id is persisted.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.StateDir, "base_commit.txt")
}

// JournalPath is the sqlite run journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir, "journal.db")
}

// LockPath is the advisory lock guarding against overlapping runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "watchdog.lock")
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	// contains the token, keep it tight
	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}
