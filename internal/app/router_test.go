package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/greg5320/mappool/internal/repository/memory"
	"github.com/greg5320/mappool/internal/session"
	"github.com/greg5320/mappool/internal/storage"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

type testEnv struct {
	router   chi.Router
	db       *memory.Store
	sessions *session.MemoryStore
	images   *storage.MemoryStore
}

func newTestEnv(t *testing.T, tweak ...func(*RouterDeps)) *testEnv {
	t.Helper()
	db := memory.NewStore()
	db.Now = func() time.Time { return testNow }
	env := &testEnv{
		db:       db,
		sessions: session.NewMemoryStore(),
		images:   storage.NewMemoryStore("http://minio:9000", "maps"),
	}
	deps := RouterDeps{
		DB:                     db,
		Repos:                  memory.NewSet(db),
		Sessions:               env.sessions,
		Images:                 env.images,
		Logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionTTL:             time.Hour,
		CORSAllowedOrigins:     []string{"http://localhost:3000"},
		AllowStaffRegistration: true,
		MaxUploadBytes:         1 << 20,
		Now:                    func() time.Time { return testNow },
		Popularity:             func() int { return 7 },
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	env.router = NewRouter(deps)
	return env
}

type result struct {
	code    int
	body    map[string]interface{}
	raw     []byte
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) result {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) result {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	res := result{code: w.Code, raw: w.Body.Bytes(), cookies: w.Result().Cookies()}
	if len(res.raw) > 0 && res.raw[0] == '{' {
		require.NoError(t, json.Unmarshal(res.raw, &res.body))
	}
	return res
}

// login registers username and returns its session cookie.
func (e *testEnv) login(t *testing.T, username string, staff bool) *http.Cookie {
	t.Helper()
	res := e.do(t, http.MethodPost, "/auth/register", map[string]interface{}{
		"username": username, "password": "password-123", "is_staff": staff,
	}, nil)
	require.Equal(t, http.StatusCreated, res.code, string(res.raw))

	res = e.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": username, "password": "password-123",
	}, nil)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	for _, c := range res.cookies {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("login for %s set no session cookie", username)
	return nil
}

func (e *testEnv) createMap(t *testing.T, staff *http.Cookie, title string) int64 {
	t.Helper()
	res := e.do(t, http.MethodPost, "/maps", map[string]string{"title": title, "players": "2"}, staff)
	require.Equal(t, http.StatusCreated, res.code, string(res.raw))
	return int64(res.body["id"].(float64))
}

func TestWorkedExample(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "owner", false)
	staff := e.login(t, "moderator", true)
	five := e.createMap(t, staff, "Lost Temple")
	seven := e.createMap(t, staff, "Python")

	res := e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": five}, owner)
	require.Equal(t, http.StatusCreated, res.code, string(res.raw))
	assert.Equal(t, "draft", res.body["status"])
	assert.Equal(t, float64(1), res.body["map_count"])
	poolPath := fmt.Sprintf("/map-pools/%d", int64(res.body["id"].(float64)))

	res = e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": five}, owner)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "VALIDATION_ERROR", res.body["code"])

	res = e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": seven}, owner)
	require.Equal(t, http.StatusCreated, res.code)
	assert.Equal(t, float64(2), res.body["map_count"])

	res = e.do(t, http.MethodGet, "/maps", nil, owner)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, float64(2), res.body["draft_pool_count"])
	assert.NotNil(t, res.body["draft_pool_id"])

	res = e.do(t, http.MethodPut, poolPath+"/submit", nil, owner)
	assert.Equal(t, http.StatusBadRequest, res.code, "player_login is required first")

	res = e.do(t, http.MethodPut, poolPath, map[string]string{"player_login": "Flash"}, owner)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, "Flash", res.body["player_login"])

	res = e.do(t, http.MethodPut, poolPath+"/submit", nil, owner)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, "submitted", res.body["status"])
	assert.NotNil(t, res.body["submit_date"])

	res = e.do(t, http.MethodPut, poolPath+"/moderate", map[string]string{"action": "complete"}, staff)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, "completed", res.body["status"])
	assert.Equal(t, float64(7), res.body["popularity"])
	assert.Equal(t, "moderator", res.body["moderator_login"])

	res = e.do(t, http.MethodGet, poolPath, nil, owner)
	require.Equal(t, http.StatusOK, res.code)
	entries := res.body["maps"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["position"])

	res = e.do(t, http.MethodGet, "/map-pools", nil, owner)
	require.Equal(t, http.StatusOK, res.code)
	var pools []map[string]interface{}
	require.NoError(t, json.Unmarshal(res.raw, &pools))
	assert.Len(t, pools, 1)
}

func TestAnonymousAccess(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/maps", nil, nil).code)

	res := e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", res.body["code"])

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/map-pools", nil, nil).code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/auth/me", nil, nil).code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/maps", map[string]string{"title": "X"}, nil).code)
}

func TestUnknownSessionIsRejected(t *testing.T) {
	e := newTestEnv(t)
	stale := &http.Cookie{Name: DefaultCookieName, Value: "no-such-session"}

	res := e.do(t, http.MethodGet, "/maps", nil, stale)
	assert.Equal(t, http.StatusUnauthorized, res.code, "an invalid session fails even where anonymous is allowed")

	res = e.do(t, http.MethodPost, "/auth/logout", nil, stale)
	assert.Equal(t, http.StatusOK, res.code)
}

func TestSessionStoreOutage(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t, "owner", false)
	e.sessions.Err = assert.AnError

	res := e.do(t, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusInternalServerError, res.code)
	assert.Equal(t, "DEPENDENCY_FAILURE", res.body["code"])
}

func TestLoginLogoutCycle(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t, "owner", false)
	assert.True(t, cookie.HttpOnly)

	res := e.do(t, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "owner", res.body["username"])
	assert.NotContains(t, string(res.raw), "password")

	res = e.do(t, http.MethodPut, "/auth/profile", map[string]string{"first_name": "Lee"}, cookie)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, "Lee", res.body["first_name"])

	res = e.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, res.code)
	require.NotEmpty(t, res.cookies)
	assert.Equal(t, -1, res.cookies[0].MaxAge)
	assert.Equal(t, 0, e.sessions.Len())

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/auth/me", nil, cookie).code)

	res = e.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "owner", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestModerationCheckOrder(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "owner", false)
	staff := e.login(t, "moderator", true)
	mapID := e.createMap(t, staff, "A")

	res := e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": mapID}, owner)
	require.Equal(t, http.StatusCreated, res.code)
	poolPath := fmt.Sprintf("/map-pools/%d", int64(res.body["id"].(float64)))

	tests := []struct {
		name   string
		path   string
		action string
		cookie *http.Cookie
		want   int
	}{
		{"owner is not staff", poolPath, "complete", owner, http.StatusForbidden},
		{"owner with empty action", poolPath, "", owner, http.StatusForbidden},
		{"missing pool with empty action", "/map-pools/999", "", staff, http.StatusNotFound},
		{"empty action", poolPath, "", staff, http.StatusBadRequest},
		{"missing pool", "/map-pools/999", "bogus", staff, http.StatusNotFound},
		{"bad action", poolPath, "bogus", staff, http.StatusBadRequest},
		{"draft cannot be completed", poolPath, "complete", staff, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.do(t, http.MethodPut, tt.path+"/moderate", map[string]string{"action": tt.action}, tt.cookie)
			assert.Equal(t, tt.want, res.code, string(res.raw))
		})
	}
}

func TestPoolAccessAndMemberships(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "owner", false)
	other := e.login(t, "other", false)
	staff := e.login(t, "moderator", true)
	a, b := e.createMap(t, staff, "A"), e.createMap(t, staff, "B")

	res := e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": a}, owner)
	require.Equal(t, http.StatusCreated, res.code)
	poolPath := fmt.Sprintf("/map-pools/%d", int64(res.body["id"].(float64)))
	e.do(t, http.MethodPost, "/map-pools/draft", map[string]int64{"map_id": b}, owner)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, poolPath, nil, other).code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, poolPath, nil, staff).code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/map-pools/abc", nil, owner).code)

	entry := fmt.Sprintf("%s/maps/%d", poolPath, b)
	res = e.do(t, http.MethodPut, entry, map[string]int{"position": 0}, owner)
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = e.do(t, http.MethodPut, entry, map[string]int{"position": 1}, owner)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, float64(1), res.body["position"])

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodDelete, entry, nil, other).code)
	res = e.do(t, http.MethodDelete, entry, nil, owner)
	assert.Equal(t, http.StatusNoContent, res.code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, entry, nil, owner).code)

	res = e.do(t, http.MethodDelete, poolPath, nil, owner)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "deleted", res.body["status"])
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodDelete, poolPath, nil, owner).code)
}

func TestMapCatalogEndpoints(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "owner", false)
	staff := e.login(t, "moderator", true)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/maps", map[string]string{"title": "X"}, owner).code)
	res := e.do(t, http.MethodPost, "/maps", map[string]string{"description": "no title"}, staff)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body["message"], "title is required")

	id := e.createMap(t, staff, "Fighting Spirit")
	path := fmt.Sprintf("/maps/%d", id)

	res = e.do(t, http.MethodPut, path, map[string]string{"tileset": "Badlands"}, staff)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Equal(t, "Fighting Spirit", res.body["title"])
	assert.Equal(t, "Badlands", res.body["tileset"])

	res = e.do(t, http.MethodGet, "/maps?title=spirit", nil, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Len(t, res.body["maps"], 1)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, path, nil, staff).code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, path, nil, nil).code)
}

func TestUploadImage(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "owner", false)
	staff := e.login(t, "moderator", true)
	id := e.createMap(t, staff, "A")
	path := fmt.Sprintf("/maps/%d/image", id)

	upload := func(field string, cookie *http.Cookie) result {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(field, "shot.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.AddCookie(cookie)
		return e.serve(t, req)
	}

	assert.Equal(t, http.StatusForbidden, upload("image", owner).code)
	assert.Equal(t, http.StatusBadRequest, upload("other", staff).code)

	res := upload("image", staff)
	require.Equal(t, http.StatusOK, res.code, string(res.raw))
	assert.Contains(t, res.body["image_url"], "http://minio:9000/maps/maps/")
	assert.Equal(t, 1, e.images.Len())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	res := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "healthy", res.body["status"])

	e.db.PingErr = assert.AnError
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/health", nil, nil).code)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mappool_http_requests_total")
}

type downObjectAPI struct{}

func (downObjectAPI) PutObject(context.Context, string, string, io.Reader, int64, minio.PutObjectOptions) (minio.UploadInfo, error) {
	return minio.UploadInfo{}, errors.New("connection refused")
}

func (downObjectAPI) RemoveObject(context.Context, string, string, minio.RemoveObjectOptions) error {
	return errors.New("connection refused")
}

func TestHealthReportsImageStoreBreaker(t *testing.T) {
	images := storage.NewMinioStore(downObjectAPI{}, "maps", "http://minio:9000",
		storage.BreakerConfig{FailureThreshold: 1, Timeout: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := newTestEnv(t, func(d *RouterDeps) { d.Images = images })

	res := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "healthy", res.body["status"])
	assert.Equal(t, "closed", res.body["image_store"])

	require.Error(t, images.Delete(context.Background(), "http://minio:9000/maps/k.png"))

	res = e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "degraded", res.body["status"])
	assert.Equal(t, "open", res.body["image_store"])
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t, func(d *RouterDeps) { d.LoginRateLimit = 2 })
	body := map[string]string{"username": "ghost", "password": "whatever-1"}

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/auth/login", body, nil).code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/auth/login", body, nil).code)
	res := e.do(t, http.MethodPost, "/auth/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.code)
	assert.Equal(t, "RATE_LIMITED", res.body["code"])
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/maps", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
