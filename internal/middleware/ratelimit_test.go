package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/roomies/internal/auth"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter() (*RateLimiter, *clock) {
	c := &clock{t: time.Date(2025, 7, 2, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = c.now
	return rl, c
}

func TestRateLimiterWindow(t *testing.T) {
	rl, c := newTestLimiter()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("k", 3, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	c.t = c.t.Add(20 * time.Second)
	ok, wait := rl.Allow("k", 3, time.Minute)
	if ok {
		t.Fatal("4th request should be denied")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %s, want 40s", wait)
	}

	c.t = c.t.Add(40 * time.Second)
	if ok, _ := rl.Allow("k", 3, time.Minute); !ok {
		t.Error("should be allowed after the window resets")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, c := newTestLimiter()
	rl.Allow("old", 5, time.Second)
	c.t = c.t.Add(2 * time.Second)
	rl.Allow("fresh", 5, time.Minute)

	rl.Cleanup()

	if _, ok := rl.windows["old"]; ok {
		t.Error("reset window should be removed")
	}
	if _, ok := rl.windows["fresh"]; !ok {
		t.Error("active window should remain")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	handler := RateLimit(rl, PersonOrIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(personID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/households/join", nil)
		req = req.WithContext(auth.WithPerson(req.Context(), personID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send(1); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
	rec := send(1)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}

	// Another person has their own budget.
	if rec := send(2); rec.Code != http.StatusOK {
		t.Errorf("other person: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := RealIP(req); got != "10.0.0.5" {
		t.Errorf("RealIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := RealIP(req); got != "203.0.113.9" {
		t.Errorf("RealIP = %q", got)
	}
}
