//go:build integration

package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/greg5320/mappool/internal/app"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/session"
	"github.com/greg5320/mappool/internal/storage"
)

// TestEnv is an API server over a real Postgres with in-memory session and
// object stores.
type TestEnv struct {
	Server   *httptest.Server
	DB       *repository.PgDB
	Repos    repository.Set
	Sessions *session.MemoryStore
	Images   *storage.MemoryStore
	t        *testing.T
}

// Setup truncates the shared database and starts a server on it.
func Setup(t *testing.T) *TestEnv {
	t.Helper()
	db := Postgres(t)
	Truncate(t, db)

	env := &TestEnv{
		DB:       db,
		Repos:    repository.NewPgSet(),
		Sessions: session.NewMemoryStore(),
		Images:   storage.NewMemoryStore("http://minio:9000", "maps"),
		t:        t,
	}
	env.Server = httptest.NewServer(app.NewRouter(app.RouterDeps{
		DB:                     db,
		Repos:                  env.Repos,
		Sessions:               env.Sessions,
		Images:                 env.Images,
		Logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionTTL:             time.Hour,
		AllowStaffRegistration: true,
		MaxUploadBytes:         1 << 20,
		Popularity:             func() int { return 5 },
	}))
	t.Cleanup(env.Server.Close)
	return env
}

// Do sends a JSON request with an optional session cookie.
func (env *TestEnv) Do(method, path string, body interface{}, cookie *http.Cookie) *http.Response {
	env.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			env.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, env.Server.URL+path, rd)
	if err != nil {
		env.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// DecodeBody decodes resp into dst and closes it.
func (env *TestEnv) DecodeBody(resp *http.Response, dst interface{}) {
	env.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		env.t.Fatalf("decode body: %v", err)
	}
}

// Login registers username and returns its session cookie.
func (env *TestEnv) Login(username string, staff bool) *http.Cookie {
	env.t.Helper()
	resp := env.Do(http.MethodPost, "/auth/register", map[string]interface{}{
		"username": username, "password": "password-123", "is_staff": staff,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}

	resp = env.Do(http.MethodPost, "/auth/login", map[string]string{
		"username": username, "password": "password-123",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == app.DefaultCookieName {
			return c
		}
	}
	env.t.Fatalf("login %s: no session cookie", username)
	return nil
}

// SeedMap inserts an active map directly.
func (env *TestEnv) SeedMap(title string) *domain.Map {
	env.t.Helper()
	m := &domain.Map{Title: title, Status: domain.MapActive, Players: "2"}
	if err := env.Repos.Maps.Create(context.Background(), env.DB, m); err != nil {
		env.t.Fatalf("seed map: %v", err)
	}
	return m
}
