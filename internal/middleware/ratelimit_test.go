package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if !rl.Allow("key", 5, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("key", 5, time.Minute) {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("key", 3, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, wait := rl.allow("key", 3, time.Minute)
	if ok {
		t.Fatal("should be blocked once the bucket is empty")
	}
	if wait <= 0 || wait > 20*time.Second {
		t.Errorf("wait = %v, want up to one refill interval", wait)
	}

	// One token returns every window/limit.
	now = now.Add(20 * time.Second)
	if !rl.Allow("key", 3, time.Minute) {
		t.Error("should be allowed after one refill interval")
	}
	if rl.Allow("key", 3, time.Minute) {
		t.Error("only one token should have refilled")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("stale", 5, time.Minute)
	now = now.Add(defaultStaleAfter + time.Second)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["stale"]; ok {
		t.Error("stale entry should have been cleaned up")
	}
	if _, ok := rl.entries["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First 2 requests should pass
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 3rd request should be rate limited
	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body = %q, want JSON error", rec.Body.String())
	}

	// A different path has its own budget.
	req = httptest.NewRequest("POST", "/other", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other path: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "203.0.113.9", "X-Forwarded-For": "10.0.0.1"}, "127.0.0.1:1234", "203.0.113.9"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, "127.0.0.1:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.4:5678", "192.0.2.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
