package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/forms"
	"segmentbook-service/internal/client/guard"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/session"
	qc "segmentbook-service/internal/pkg/querycache"
)

type fakeBackend struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func (f *fakeBackend) hits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func reply(w http.ResponseWriter, status int, data any, errText string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": status < 400,
		"message": http.StatusText(status),
		"data":    data,
		"error":   errText,
	})
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		switch r.Method + " " + r.URL.Path {
		case "POST /api/v1/auth/login":
			reply(w, http.StatusOK, map[string]any{
				"access_token":  "tok",
				"refresh_token": "refresh",
				"token_type":    "Bearer",
				"expires_at":    time.Now().Add(time.Hour).UTC(),
				"user": map[string]any{
					"id": "u1", "email": "ada@example.com", "full_name": "Ada Lovelace", "username": "ada",
				},
			}, "")
		case "GET /api/v1/users/me":
			reply(w, http.StatusOK, model.Profile{ID: "u1", Email: "ada@example.com", FullName: "Ada Lovelace", Username: "ada"}, "")
		case "POST /api/v1/books/b1/requests":
			reply(w, http.StatusConflict, nil, "You have already requested this book")
		default:
			reply(w, http.StatusOK, nil, "")
		}
	}))
	t.Cleanup(f.Close)
	return f
}

type run struct {
	stdout, stderr bytes.Buffer
	err            error
}

func execute(t *testing.T, f *fakeBackend, sessionFile string, args ...string) *run {
	t.Helper()
	cmd := NewRootCommand()
	r := &run{}
	cmd.SetOut(&r.stdout)
	cmd.SetErr(&r.stderr)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(append(args, "--api-url", f.URL, "--session-file", sessionFile))
	r.err = cmd.Execute()
	return r
}

func sessionPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "session.yaml")
}

func storeSession(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, backend.NewSessionFile(path).Save(&session.Session{
		UserID:      "u1",
		Email:       "ada@example.com",
		FullName:    "Ada Lovelace",
		Username:    "ada",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour).UTC(),
	}))
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{
		"signin", "signup", "signout", "open", "watch",
		"donate", "mark-donated", "edit-book", "request-book",
		"accept", "reject", "read", "read-all", "send", "update-profile",
	} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"verbose", "api-url", "session-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestInvalidAPIURL(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"open", "/", "--api-url", "localhost:8000"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api url")
}

func TestSignUpValidatesBeforeAnyRequest(t *testing.T) {
	f := newFakeBackend(t)

	r := execute(t, f, sessionPath(t), "signup",
		"--full-name", "Ada Lovelace",
		"--username", "ada",
		"--email", "ada@example.com",
		"--password", "weak",
		"--country", "Kenya",
	)

	var fe forms.FieldErrors
	require.True(t, errors.As(r.err, &fe), "got %v", r.err)
	assert.Contains(t, fe, "password")
	assert.Contains(t, r.stderr.String(), "password: Password must be at least 8 characters long")
	assert.Empty(t, f.hits())
}

func TestSignInStoresSession(t *testing.T) {
	f := newFakeBackend(t)
	path := sessionPath(t)

	r := execute(t, f, path, "signin", "--email", "ada@example.com", "--password", "secret", "--next", "")
	require.NoError(t, r.err)

	assert.Contains(t, r.stdout.String(), "Welcome back, Ada Lovelace")
	assert.Contains(t, r.stderr.String(), "✓ Signed in successfully")

	stored, err := backend.NewSessionFile(path).Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "tok", stored.AccessToken)
}

func TestOpenProtectedRouteWithoutSession(t *testing.T) {
	f := newFakeBackend(t)

	r := execute(t, f, sessionPath(t), "open", "/donations")
	require.NoError(t, r.err)

	assert.Contains(t, r.stdout.String(), "Sign in")
	assert.Contains(t, r.stderr.String(), guard.NoticeSignInRequired)
	assert.Empty(t, f.hits())
}

func TestWriteWithoutSessionIsRefused(t *testing.T) {
	f := newFakeBackend(t)

	r := execute(t, f, sessionPath(t), "mark-donated", "b1", "--to", "bob")
	assert.ErrorIs(t, r.err, ErrSignInRequired)
	assert.Contains(t, r.stderr.String(), guard.NoticeSignInRequired)
	assert.Empty(t, f.hits())
}

func TestWriteShowsBackendMessageVerbatim(t *testing.T) {
	f := newFakeBackend(t)
	path := sessionPath(t)
	storeSession(t, path)

	r := execute(t, f, path, "request-book", "b1")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr.String(), "✗ You have already requested this book")
	assert.Contains(t, f.hits(), "POST /api/v1/books/b1/requests")

	// Already shown by the notifier.
	var out bytes.Buffer
	Report(&out, r.err)
	assert.Empty(t, out.String())
}

func TestReportPrintsUnshownErrors(t *testing.T) {
	var out bytes.Buffer
	Report(&out, errors.New("page not found: /nowhere"))
	assert.Equal(t, "Error: page not found: /nowhere\n", out.String())

	out.Reset()
	Report(&out, nil)
	assert.Empty(t, out.String())
}

func TestWatchServesCacheMetrics(t *testing.T) {
	f := newFakeBackend(t)
	path := sessionPath(t)
	storeSession(t, path)

	ctx := context.Background()
	app, err := newApp(ctx, &RootOptions{APIURL: f.URL, SessionFile: path}, io.Discard, false)
	require.NoError(t, err)
	defer app.Close()

	q := app.Catalog.Profile("u1")
	_, err = qc.GetQuery(ctx, app.Cache, q)
	require.NoError(t, err)
	_, err = qc.GetQuery(ctx, app.Cache, q)
	require.NoError(t, err)

	addr, stop, err := app.ServeMetrics("127.0.0.1:0")
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `segmentbook_query_cache_events_total{event="fetch",operation="profile"} 1`)
	assert.Contains(t, string(body), `segmentbook_query_cache_events_total{event="hit",operation="profile"} 1`)

	watch, _, err := NewRootCommand().Find([]string{"watch"})
	require.NoError(t, err)
	assert.NotNil(t, watch.Flags().Lookup("metrics-addr"))
}
