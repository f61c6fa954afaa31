// Package cache holds the console's in-process caches and the manager that
// sweeps their expired entries.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Sweepable is a cache the Manager can clean.
type Sweepable interface {
	Name() string
	CleanExpired() int
	Len() int
}

// Manager periodically drops expired entries from registered caches.
type Manager struct {
	mu      sync.Mutex
	caches  []Sweepable
	logger  *slog.Logger
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	running bool
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(caches ...Sweepable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, caches...)
}

// StartCleanup sweeps every interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()
	go m.loop(interval)
}

// CleanNow runs one sweep and returns the number of removed entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Sweepable(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		n := c.CleanExpired()
		if n > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", c.Name(), "count", n, "remaining", c.Len())
		}
		total += n
	}
	return total
}

func (m *Manager) loop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanNow()
		case <-m.stop:
			return
		}
	}
}

// Stop ends the sweep loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.stop)
		m.mu.Lock()
		running := m.running
		m.mu.Unlock()
		if running {
			<-m.done
		}
	})
}
