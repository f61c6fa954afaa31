package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetector_Reason(t *testing.T) {
	d, err := NewDetector(nil)
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   string
	}{
		{"plain page", http.MethodGet, "/departments?page=2", "Mozilla/5.0", ""},
		{"traversal", http.MethodGet, "/static/../../etc/passwd", "", "path"},
		{"sql in query", http.MethodGet, "/transactions?search=1%20union%20select", "", "query"},
		{"encoded script tag", http.MethodGet, "/budgets?search=%3CScript%3Ealert(1)", "", "query"},
		{"form-encoded space", http.MethodGet, "/departments?search=union+select", "", "query"},
		{"malformed escape", http.MethodGet, "/departments?search=100%zz", "", ""},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "user_agent"},
		{"trace method", "TRACE", "/", "", "method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.ua != "" {
				r.Header.Set("User-Agent", tt.ua)
			}
			if got := d.Reason(r); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetector_ExtractClientIP(t *testing.T) {
	d, err := NewDetector([]string{"10.1.0.0/16", "192.168.5.5"})
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct client", "203.0.113.9:5555", "1.2.3.4", "203.0.113.9"},
		{"trusted cidr", "10.1.2.3:80", "198.51.100.7, 10.1.2.3", "198.51.100.7"},
		{"trusted single ip", "192.168.5.5:80", "198.51.100.8", "198.51.100.8"},
		{"loopback proxy", "127.0.0.1:80", "198.51.100.9", "198.51.100.9"},
		{"invalid forwarded value", "10.1.2.3:80", "nonsense", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			r.Header.Set("X-Forwarded-For", tt.xff)
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDetector_InvalidProxy(t *testing.T) {
	if _, err := NewDetector([]string{"not-an-ip/99"}); err == nil {
		t.Fatal("expected error for invalid proxy")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	want := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "no-store",
		"Vary":                   "HX-Request",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self' https://unpkg.com") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}

func TestStaticAssetMiddleware(t *testing.T) {
	pages := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware
	h := pages(StaticAssetMiddleware(3600)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q, want the asset policy to win", got)
	}
}
