// Package keyhouse is the client for the keyhouse declarative-state API: a
// GitHub-style contents/commits/compare surface over the repository that
// declares access grants (`access/<provider>/<project>/<hash>`) and username
// mappings (`names/<hash>`).
package keyhouse

import (
	"log/slog"
	"strings"

	"github.com/imroc/req/v3"

	"github.com/keyhouse-ops/watchdog/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderAccept    = "Accept"

	acceptJSON = "application/vnd.github.v3+json"
	acceptDiff = "application/vnd.github.v3.diff"
)

// Config is the configuration for the keyhouse client.
type Config struct {
	// BaseURL is the contents endpoint of the keyhouse repository.
	// The commits and compare endpoints live one level above it.
	BaseURL string

	// Token is the bearer token for the API.
	Token string

	// Branch is the tracked branch pointer ("build" state).
	Branch string

	Logger *slog.Logger
}

// Client talks to the keyhouse API.
type Client struct {
	client *req.Client
	branch string
	logger *slog.Logger
}

// New creates a new keyhouse API client. The client base is the repository
// root, derived by trimming the "/contents" suffix off the configured URL.
func New(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repoBase := strings.TrimSuffix(cfg.BaseURL, "/contents")

	client := req.C().
		SetBaseURL(repoBase).
		SetCommonBearerAuthToken(cfg.Token).
		SetCommonHeader(HeaderUserAgent, version.UserAgent()).
		SetCommonHeader(HeaderAccept, acceptJSON)

	return &Client{
		client: client,
		branch: cfg.Branch,
		logger: logger,
	}
}

// Branch returns the tracked branch pointer this client reads from.
func (c *Client) Branch() string {
	return c.branch
}

// Close releases idle connections held by the underlying client.
func (c *Client) Close() {
	c.client.GetClient().CloseIdleConnections()
}
