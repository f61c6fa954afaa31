package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(l.Stop)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("session:a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	*now = now.Add(20 * time.Second)
	ok, wait := l.Allow("session:a")
	if ok {
		t.Fatal("fourth request in the window should be rejected")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}
	if ok, _ := l.Allow("ip:10.0.0.2"); !ok {
		t.Fatal("other keys have their own window")
	}

	*now = now.Add(40 * time.Second)
	if ok, _ := l.Allow("session:a"); !ok {
		t.Fatal("a new window should allow the client again")
	}
}

func TestLimiter_SweepForgetsIdleClients(t *testing.T) {
	l, now := newTestLimiter(t, 10)

	l.Allow("a")
	*now = now.Add(5 * time.Minute)
	l.Allow("b")
	*now = now.Add(6 * time.Minute)

	l.sweep()
	if got := l.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", got)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(t, 1)

	var limited int
	h := l.Middleware(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		limited++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		path string
		want int
	}{
		{"/department", http.StatusNoContent},
		{"/department", http.StatusTooManyRequests},
		{"/healthz", http.StatusNoContent},
		{"/static/app.css", http.StatusNoContent},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
		}
	}
	if limited != 1 {
		t.Errorf("onLimit called %d times, want 1", limited)
	}
}
