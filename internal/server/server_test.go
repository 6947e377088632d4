package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/999joaquin/CoreTrack/internal/config"
	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8080",
		BaseURL:           "http://localhost:8080",
		SecretKey:         "test-secret",
		SchedulerInterval: time.Hour,
		ActivityQueueSize: 10,
	}
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(db, testConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.recorder.Start()
	t.Cleanup(func() {
		srv.notifier.Wait()
		srv.recorder.Stop()
	})
	return srv, srv.Router()
}

func do(h http.Handler, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresSecretKey(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.SecretKey = ""
	if _, err := New(db, cfg, nil, slog.Default()); !errors.Is(err, ErrMissingSecretKey) {
		t.Errorf("err = %v, want ErrMissingSecretKey", err)
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(h, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request logger did not set X-Request-ID")
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	_, h := newTestServer(t)

	for _, target := range []string{"/api/projects", "/api/activities", "/api/notifications", "/api/dashboard"} {
		if rec := do(h, "GET", target, nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", target, rec.Code)
		}
	}
}

func TestSignupThenUseSession(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(h, "POST", "/api/auth/signup", map[string]string{
		"email": "owner@example.com", "password": "Correct!Horse1", "full_name": "Owner",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d: %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie")
	}

	rec = do(h, "POST", "/api/projects", map[string]any{"title": "Launch", "budget": 1000}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(h, "GET", "/api/projects", nil, cookie)
	var projects []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &projects); err != nil || len(projects) != 1 {
		t.Fatalf("projects = %s (%v)", rec.Body.String(), err)
	}

	// The first account is an admin, so admin routes are reachable.
	rec = do(h, "GET", "/api/admin/invitations", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("admin invitations = %d", rec.Code)
	}

	rec = do(h, "POST", "/api/auth/signout", nil, cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("signout = %d", rec.Code)
	}
	if rec := do(h, "GET", "/api/projects", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("after signout = %d, want 401", rec.Code)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	_, h := newTestServer(t)

	var last int
	for i := 0; i < 11; i++ {
		last = do(h, "POST", "/api/auth/signin", map[string]string{"email": "x@example.com", "password": "nope"}, nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th sign-in attempt = %d, want 429", last)
	}
}

func TestCleanupRunsWithoutError(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.ActivityRetentionDays = 30
	srv.Cleanup(t.Context())
}
