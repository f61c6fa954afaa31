package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pending-outbox sweep on a cron schedule. Runs never
// overlap; a tick that arrives while a sweep is running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	worker *LedgerWorker
	purge  func(ctx context.Context) (int64, error)
}

// NewScheduler registers the sweep on schedule ("@every 1m", "*/5 * * * *").
// purge, when set, runs with every sweep to drop expired sessions.
func NewScheduler(ctx context.Context, schedule string, w *LedgerWorker, purge func(ctx context.Context) (int64, error)) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	s := &Scheduler{cron: c, worker: w, purge: purge}

	if _, err := c.AddFunc(schedule, func() { s.sweep(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule ledger sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	n, err := s.worker.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger sweep failed", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Ledger sweep completed", "synced", n, "duration", time.Since(start))
	}

	if s.purge != nil {
		if removed, err := s.purge(ctx); err != nil {
			slog.ErrorContext(ctx, "Session purge failed", "error", err)
		} else if removed > 0 {
			slog.InfoContext(ctx, "Expired sessions purged", "count", removed)
		}
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
