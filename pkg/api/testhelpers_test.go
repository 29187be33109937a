package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/observability"
	"github.com/critiqdev/critiq/pkg/store"
)

// captureSender records confirmation codes instead of mailing them.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendConfirmationCode(_ context.Context, u *auth.User, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[u.Username] = code
}

func (c *captureSender) codeFor(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[username]
}

type testEnv struct {
	store   *store.Store
	handler http.Handler
	sender  *captureSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	st := store.New(db, logger)

	codes, err := auth.NewConfirmationCodeIssuer("code-secret", time.Hour)
	require.NoError(t, err)
	tokens, err := auth.NewAccessTokenIssuer("token-secret", time.Hour)
	require.NoError(t, err)

	sender := &captureSender{codes: make(map[string]string)}
	svc := auth.NewService(st, codes, tokens, sender, logger)
	authMW := middleware.NewAuthMiddleware(tokens, st, logger)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	srv := NewServer(st, svc, authMW, logger, metrics)
	return &testEnv{store: st, handler: srv.Routes(), sender: sender}
}

// do runs one request through the full middleware stack.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

// register runs the full signup plus exchange flow and returns a usable
// bearer token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	rec := e.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": username,
		"email":    username + "@example.com",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code := e.sender.codeFor(username)
	require.NotEmpty(t, code)

	rec = e.do(t, "POST", "/v1/auth/token", map[string]string{
		"username":          username,
		"confirmation_code": code,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// registerAs registers a user and sets their role directly in storage.
func (e *testEnv) registerAs(t *testing.T, username string, role auth.Role) string {
	t.Helper()

	token := e.register(t, username)
	u, err := e.store.GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, u)
	u.Role = role
	require.NoError(t, e.store.UpdateUser(context.Background(), u))
	return token
}

const testSchema = `
	PRAGMA foreign_keys = ON;

	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		is_active INTEGER NOT NULL DEFAULT 1,
		confirmation_salt TEXT NOT NULL DEFAULT '',
		salt_issued_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE
	);

	CREATE TABLE genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE
	);

	CREATE TABLE titles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL
	);

	CREATE TABLE title_genres (
		title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		genre_id INTEGER NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
		PRIMARY KEY (title_id, genre_id)
	);

	CREATE TABLE reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		score INTEGER NOT NULL,
		pub_date TIMESTAMP NOT NULL,
		UNIQUE(title_id, author_id)
	);

	CREATE TABLE comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id INTEGER NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		pub_date TIMESTAMP NOT NULL
	);
`
