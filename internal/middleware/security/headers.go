package security

import (
	"net/http"
	"strconv"
	"strings"
)

// HeadersConfig describes the response headers of the console.
type HeadersConfig struct {
	// ScriptSources are allowed in addition to 'self', e.g. the htmx CDN.
	ScriptSources []string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions     string
	ReferrerPolicy    string
	PermissionsPolicy string

	// NoStore keeps pages that show a user's financial data out of shared
	// and browser caches. Static assets set their own Cache-Control.
	NoStore bool
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ScriptSources:         []string{"https://unpkg.com"},
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		NoStore:               true,
	}
}

// ContentSecurityPolicy renders the CSP. HTMX swaps only same-origin
// fragments, so connect-src stays 'self'.
func (c HeadersConfig) ContentSecurityPolicy() string {
	script := append([]string{"'self'"}, c.ScriptSources...)
	directives := []string{
		"default-src 'self'",
		"script-src " + strings.Join(script, " "),
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"connect-src 'self'",
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ")
}

func (c HeadersConfig) hsts() string {
	v := "max-age=" + strconv.Itoa(c.HSTSMaxAge)
	if c.HSTSIncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

// HeadersMiddleware sets the security headers on every response.
type HeadersMiddleware struct {
	config HeadersConfig
	csp    string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config, csp: config.ContentSecurityPolicy()}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Security-Policy", h.csp)
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("Cross-Origin-Opener-Policy", "same-origin")
		hdr.Set("Cross-Origin-Resource-Policy", "same-origin")
		if h.config.XFrameOptions != "" {
			hdr.Set("X-Frame-Options", h.config.XFrameOptions)
		}
		if h.config.ReferrerPolicy != "" {
			hdr.Set("Referrer-Policy", h.config.ReferrerPolicy)
		}
		if h.config.PermissionsPolicy != "" {
			hdr.Set("Permissions-Policy", h.config.PermissionsPolicy)
		}
		if r.TLS != nil && h.config.HSTSMaxAge > 0 {
			hdr.Set("Strict-Transport-Security", h.config.hsts())
		}
		if h.config.NoStore {
			hdr.Set("Cache-Control", "no-store")
		}
		// Full pages and HTMX partials share URLs.
		hdr.Add("Vary", "HX-Request")
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge
// seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
