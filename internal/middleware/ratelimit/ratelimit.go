// Package ratelimit throttles console requests per client in fixed
// one-minute windows.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const window = time.Minute

var (
	limitedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finconsole_rate_limited_requests_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
	trackedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finconsole_rate_limit_clients",
		Help: "Clients currently tracked by the rate limiter.",
	})
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// IdleAfter is how long a client may stay silent before it is forgotten.
	IdleAfter time.Duration
	// ExemptPrefixes are path prefixes never counted, such as probes.
	ExemptPrefixes []string
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		IdleAfter:         10 * time.Minute,
		ExemptPrefixes:    []string{"/healthz", "/readyz", "/metrics", "/static/"},
	}
}

// Limiter counts requests per key. Keys are usually a session id or a
// client IP.
type Limiter struct {
	cfg  Config
	now  func() time.Time
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	clients map[string]*bucket
}

type bucket struct {
	windowStart time.Time
	lastSeen    time.Time
	count       int
}

// NewLimiter starts the idle-client sweep. Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.ExemptPrefixes == nil {
		cfg.ExemptPrefixes = def.ExemptPrefixes
	}

	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
		clients: make(map[string]*bucket),
	}
	go l.sweepLoop()
	return l
}

// Allow records a request for key. When the window is used up it reports
// how long until the next window opens.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		l.clients[key] = &bucket{windowStart: now, lastSeen: now, count: 1}
		trackedClients.Set(float64(len(l.clients)))
		return true, 0
	}

	b.lastSeen = now
	if now.Sub(b.windowStart) >= window {
		b.windowStart = now
		b.count = 1
		return true, 0
	}
	b.count++
	if b.count > l.cfg.RequestsPerMinute {
		limitedRequests.Inc()
		return false, b.windowStart.Add(window).Sub(now)
	}
	return true, 0
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep forgets clients idle for longer than IdleAfter.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleAfter)
	for key, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
	trackedClients.Set(float64(len(l.clients)))
}

// ActiveClients returns the number of tracked keys.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) exempt(path string) bool {
	for _, p := range l.cfg.ExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware limits requests by the key returned from keyFor. onLimit
// writes the rejection; Retry-After is already set when it runs.
func (l *Limiter) Middleware(keyFor func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.Allow(keyFor(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			secs := int((wait + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
