package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keyhouse-ops/watchdog/internal/agent/checkpoint"
	"github.com/keyhouse-ops/watchdog/internal/agent/hostusers"
	"github.com/keyhouse-ops/watchdog/internal/agent/journal"
)

type fakeRunner struct {
	calls  atomic.Int64
	err    error
	ctxErr error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.calls.Add(1)
	r.ctxErr = ctx.Err()
	return r.err
}

type fixture struct {
	handler http.Handler
	runner  *fakeRunner
	users   *hostusers.MockManager
	ckpt    *checkpoint.Store
	jnl     *journal.Journal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmp := t.TempDir()
	jnl, err := journal.Open(filepath.Join(tmp, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { jnl.Close() })

	runner := &fakeRunner{}
	users := new(hostusers.MockManager)
	ckpt := checkpoint.NewStore(filepath.Join(tmp, "base_commit.txt"))

	srv, err := New(&Config{Addr: "localhost:0", Token: "secret"}, runner, users, ckpt, jnl)
	require.NoError(t, err)

	return &fixture{
		handler: srv.setupRoutes(),
		runner:  runner,
		users:   users,
		ckpt:    ckpt,
		jnl:     jnl,
	}
}

func (f *fixture) request(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer secret")
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(&Config{Addr: "localhost:0"}, &fakeRunner{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoAuthToken)
}

func TestHealthz_Open(t *testing.T) {
	f := newFixture(t)
	w := f.request(http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestTokenAuth(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token", func(t *testing.T) {
		w := f.request(http.MethodPost, "/v1/webhook", "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, int64(0), f.runner.calls.Load())
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhook", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestWebhook_TriggersRun(t *testing.T) {
	f := newFixture(t)

	w := f.request(http.MethodPost, "/v1/webhook", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), f.runner.calls.Load())
}

func TestWebhook_RunOutlivesRequestContext(t *testing.T) {
	f := newFixture(t)

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/v1/webhook", nil).WithContext(reqCtx)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), f.runner.calls.Load())
	// the run sees a live context even though the request's is cancelled
	assert.NoError(t, f.runner.ctxErr)
}

func TestWebhook_RunFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("transport down")

	w := f.request(http.MethodPost, "/v1/webhook", "", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "transport down")
}

func TestGroupRequest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("AddUserToGroup", mock.Anything, "alice", "dev").Return(nil)

		w := f.request(http.MethodPost, "/v1/group", `{"user":"alice","group":"dev"}`, true)
		assert.Equal(t, http.StatusOK, w.Code)
		f.users.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		w := f.request(http.MethodPost, "/v1/group", `{"user":"alice"}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("identity failure", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("AddUserToGroup", mock.Anything, "alice", "dev").Return(errors.New("no such group"))

		w := f.request(http.MethodPost, "/v1/group", `{"user":"alice","group":"dev"}`, true)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRuns(t *testing.T) {
	f := newFixture(t)

	now := time.Now().UTC()
	for _, head := range []string{"c1", "c2"} {
		require.NoError(t, f.jnl.RecordRun(&journal.Run{
			StartedAt:  now,
			FinishedAt: now,
			Mode:       journal.ModeIncremental,
			HeadCommit: head,
		}, nil))
	}

	w := f.request(http.MethodGet, "/v1/runs", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	// newest first
	assert.Less(t,
		strings.Index(w.Body.String(), `"head_commit":"c2"`),
		strings.Index(w.Body.String(), `"head_commit":"c1"`))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ckpt.Save("abc123"))

	now := time.Now().UTC()
	require.NoError(t, f.jnl.RecordRun(&journal.Run{
		StartedAt:  now,
		FinishedAt: now,
		Mode:       journal.ModeIncremental,
		BaseCommit: "aaa",
		HeadCommit: "abc123",
		Applied:    2,
	}, nil))

	w := f.request(http.MethodGet, "/v1/status", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"checkpoint":"abc123"`)
	assert.Contains(t, w.Body.String(), `"head_commit":"abc123"`)
}
