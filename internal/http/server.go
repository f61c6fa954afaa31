package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finconsole/internal/api"
	"finconsole/internal/cache"
	"finconsole/internal/core"
	"finconsole/internal/dashboard"
	applog "finconsole/internal/log"
	"finconsole/internal/middleware/ratelimit"
	"finconsole/internal/middleware/security"
	"finconsole/internal/middleware/trace"
	"finconsole/internal/services"
	"finconsole/internal/storage"
	appweb "finconsole/web"
)

// SessionStore is the console's local state: sessions, per-view state and
// the audit outbox backlog shown by the readiness probe.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, user core.User, ttl time.Duration) (storage.SessionData, error)
	GetSession(ctx context.Context, id string) (storage.SessionData, error)
	DeleteSession(ctx context.Context, id string) error
	Expanded(ctx context.Context, sessionID, view string) ([]int64, error)
	SaveExpanded(ctx context.Context, sessionID, view string, ids []int64) error
	NextSeq(ctx context.Context, sessionID, view string) (int64, error)
	IsLatest(ctx context.Context, sessionID, view string, seq int64) (bool, error)
	CountPendingAuditEvents(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr         string
	PageSize     int
	SessionTTL   time.Duration
	CookieSecure bool
	// ExportParallel bounds concurrent page fetches of an export.
	ExportParallel int
	// Headers defaults to security.DefaultHeadersConfig.
	Headers *security.HeadersConfig
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Store     *api.Client
	Sessions  SessionStore
	Entities  *services.EntityService
	Options   *services.OptionService
	Formatter *dashboard.Formatter
	Logger    *applog.Logger
	Detector  *security.Detector
	Limiter   *ratelimit.Limiter
	Caches    *cache.Manager
}

// Server is the console's HTTP server.
type Server struct {
	http.Server
	opts      Options
	templates *template.Template
	store     *api.Client
	sessions  SessionStore
	entities  *services.EntityService
	options   *services.OptionService
	formatter *dashboard.Formatter
	kinds     map[core.Resource]*entityKind
	logger    *applog.Logger
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	caches    *cache.Manager
	started   time.Time

	shutdownOnce sync.Once
}

// resourcePattern matches the console's resource path segment.
const resourcePattern = "{resource:department|budget-type|budget|cash-flow-type|cash-flow|transaction}"

// NewServer parses the templates and wires routes and middleware.
func NewServer(opts Options, d Deps) (*Server, error) {
	if d.Store == nil || d.Sessions == nil || d.Entities == nil || d.Options == nil || d.Formatter == nil {
		return nil, errors.New("http: missing server dependency")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.ExportParallel <= 0 {
		opts.ExportParallel = 4
	}
	if opts.Headers == nil {
		h := security.DefaultHeadersConfig()
		opts.Headers = &h
	}
	if d.Logger == nil {
		d.Logger = applog.New(applog.DefaultConfig())
	}
	if d.Detector == nil {
		det, err := security.NewDetector(nil)
		if err != nil {
			return nil, err
		}
		d.Detector = det
	}

	t, err := appweb.ParseTemplates(templateFuncs(d.Formatter))
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := d.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		opts:      opts,
		templates: t,
		store:     d.Store,
		sessions:  d.Sessions,
		entities:  d.Entities,
		options:   d.Options,
		formatter: d.Formatter,
		kinds:     newEntityKinds(d.Formatter),
		logger:    logger,
		detector:  d.Detector,
		limiter:   d.Limiter,
		caches:    d.Caches,
		started:   time.Now(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.Use(trace.RouteLabel)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if static, err := appweb.StaticHandler("/static/"); err == nil {
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	app := r.NewRoute().Subrouter()
	app.Use(s.requireSession)
	app.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	app.HandleFunc("/ui/dashboard", s.handleDashboardPanels).Methods(http.MethodGet)
	app.HandleFunc("/transaction/export", s.handleExportTransactions).Methods(http.MethodGet)
	app.HandleFunc("/ui/cash-flow-type/{id:[0-9]+}/toggle", s.handleTreeToggle).Methods(http.MethodPost)
	app.HandleFunc("/ui/"+resourcePattern+"/list", s.handleEntityList).Methods(http.MethodGet)
	app.HandleFunc("/ui/"+resourcePattern+"/form", s.handleEntityForm).Methods(http.MethodGet)
	app.HandleFunc("/ui/"+resourcePattern+"/form/{id:[0-9]+}", s.handleEntityForm).Methods(http.MethodGet)
	app.HandleFunc("/"+resourcePattern, s.handleEntityPage).Methods(http.MethodGet)
	app.HandleFunc("/"+resourcePattern, s.handleEntityCreate).Methods(http.MethodPost)
	app.HandleFunc("/"+resourcePattern+"/{id:[0-9]+}", s.handleEntityUpdate).Methods(http.MethodPut)
	app.HandleFunc("/"+resourcePattern+"/{id:[0-9]+}", s.handleEntityDelete).Methods(http.MethodDelete)

	// Outermost first: security headers, attack detection, tracing,
	// request-scoped logger, rate limiting.
	var h http.Handler = r
	if s.limiter != nil {
		h = s.limiter.Middleware(s.rateLimitKey, s.handleRateLimited)(h)
	}
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(*s.opts.Headers).Middleware(h)
	return h
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.caches != nil {
			s.caches.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// rateLimitKey counts signed-in users per session and everyone else per
// client IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return "session:" + c.Value
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r), "path", r.URL.Path)
	msg := "Too many requests. Please try again later."
	if isHTMX(r) {
		ToastError(http.StatusTooManyRequests, msg).Write(w)
		return
	}
	http.Error(w, msg, http.StatusTooManyRequests)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks the session store and reports the audit backlog.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := "ready"
	if err := s.sessions.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Readiness check failed", applog.FieldError, err)
		status = http.StatusServiceUnavailable
		body = "session store unavailable"
	} else if pending, err := s.sessions.CountPendingAuditEvents(ctx); err == nil {
		body = fmt.Sprintf("ready (pending audit events: %d)", pending)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := s.templates.ExecuteTemplate(w, "not_found_page", nil); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", "template", "not_found_page", applog.FieldError, err)
	}
}

// render executes a named template, logging failures the way every
// handler needs.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", name, applog.FieldError, err)
	}
}
