package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finconsole/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "console.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := core.User{ID: 7, FullName: "An Nguyen", Email: "an@example.com", Role: "admin"}

	s, err := repo.CreateSession(ctx, "tok", user, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := repo.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Token != "tok" || got.User != user {
		t.Fatalf("session = %+v", got)
	}

	if err := repo.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := repo.GetSession(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "not-a-uuid"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for garbage id, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	s, err := repo.CreateSession(ctx, "tok", core.User{ID: 1}, time.Minute)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	old, err := repo.CreateSession(ctx, "old", core.User{ID: 2}, time.Second)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	now = now.Add(2 * time.Second)
	n, err := repo.PurgeExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredSessions = %d, %v", n, err)
	}
	if _, err := repo.GetSession(ctx, old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected purged session to be gone, got %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := repo.GetSession(ctx, s.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestExpandedStatePersistsPerView(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s, _ := repo.CreateSession(ctx, "tok", core.User{ID: 1}, time.Hour)

	ids, err := repo.Expanded(ctx, s.ID, "cash-flow-type")
	if err != nil || len(ids) != 0 {
		t.Fatalf("fresh view = %v, %v", ids, err)
	}
	if err := repo.SaveExpanded(ctx, s.ID, "cash-flow-type", []int64{9, 1, 4}); err != nil {
		t.Fatalf("SaveExpanded: %v", err)
	}
	if err := repo.SaveExpanded(ctx, s.ID, "other", []int64{2}); err != nil {
		t.Fatalf("SaveExpanded: %v", err)
	}
	ids, err = repo.Expanded(ctx, s.ID, "cash-flow-type")
	if err != nil {
		t.Fatalf("Expanded: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 4 || ids[2] != 9 {
		t.Fatalf("expanded = %v", ids)
	}

	// issuing sequence tokens must not reset the expansion set
	if _, err := repo.NextSeq(ctx, s.ID, "cash-flow-type"); err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	ids, _ = repo.Expanded(ctx, s.ID, "cash-flow-type")
	if len(ids) != 3 {
		t.Fatalf("expanded after NextSeq = %v", ids)
	}
}

func TestSequenceTokensLatestWins(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s, _ := repo.CreateSession(ctx, "tok", core.User{ID: 1}, time.Hour)

	first, err := repo.NextSeq(ctx, s.ID, "budget")
	if err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	second, _ := repo.NextSeq(ctx, s.ID, "budget")
	if second <= first {
		t.Fatalf("tokens not increasing: %d then %d", first, second)
	}

	if ok, _ := repo.IsLatest(ctx, s.ID, "budget", first); ok {
		t.Fatal("stale token reported as latest")
	}
	if ok, _ := repo.IsLatest(ctx, s.ID, "budget", second); !ok {
		t.Fatal("newest token not reported as latest")
	}
	if ok, _ := repo.IsLatest(ctx, s.ID, "department", second); ok {
		t.Fatal("token leaked across views")
	}
}

func TestSequenceTokensConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s, _ := repo.CreateSession(ctx, "tok", core.User{ID: 1}, time.Hour)

	const n = 20
	var wg sync.WaitGroup
	seen := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSeq(ctx, s.ID, "transaction")
			if err != nil {
				t.Errorf("NextSeq: %v", err)
				return
			}
			seen <- seq
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for seq := range seen {
		if unique[seq] {
			t.Fatalf("token %d issued twice", seq)
		}
		unique[seq] = true
	}
	if ok, _ := repo.IsLatest(ctx, s.ID, "transaction", n); !ok {
		t.Fatalf("expected %d to be the latest token", n)
	}
}

func TestAuditOutbox(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		err := repo.AppendAuditEvent(ctx, core.AuditEvent{
			EventID:     id,
			Action:      core.AuditCreate,
			Resource:    core.ResourceBudget,
			EntityID:    int64(i + 1),
			EntityLabel: "OPS - Ops",
			Actor:       "an@example.com",
			Payload:     json.RawMessage(`{"name":"Ops"}`),
			OccurredAt:  at,
		})
		if err != nil {
			t.Fatalf("AppendAuditEvent(%s): %v", id, err)
		}
	}

	if err := repo.AppendAuditEvent(ctx, core.AuditEvent{EventID: "bad", Action: "rename", Resource: core.ResourceBudget, OccurredAt: at}); err == nil {
		t.Fatal("expected invalid action to be rejected")
	}

	pending, err := repo.GetPendingAuditEvents(ctx, 2)
	if err != nil {
		t.Fatalf("GetPendingAuditEvents: %v", err)
	}
	if len(pending) != 2 || pending[0].Event.EventID != "e1" || pending[1].Event.EventID != "e2" {
		t.Fatalf("pending = %+v", pending)
	}
	if !pending[0].Event.OccurredAt.Equal(at) || string(pending[0].Event.Payload) != `{"name":"Ops"}` {
		t.Fatalf("event round trip = %+v", pending[0].Event)
	}

	if err := repo.MarkSyncError(ctx, "e1", errors.New("quota")); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}
	if err := repo.MarkSynced(ctx, "e2"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := repo.MarkSynced(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}

	pending, _ = repo.GetPendingAuditEvents(ctx, 10)
	if len(pending) != 2 || pending[0].Event.EventID != "e1" || pending[0].SyncAttempts != 1 || pending[0].LastError != "quota" {
		t.Fatalf("pending after sync = %+v", pending)
	}
	if n, _ := repo.CountPendingAuditEvents(ctx); n != 2 {
		t.Fatalf("pending count = %d", n)
	}

	_, synced, err := repo.GetAuditEvent(ctx, "e2")
	if err != nil || !synced {
		t.Fatalf("GetAuditEvent(e2) synced=%v err=%v", synced, err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	first := repo.Schema()
	repo.Close()
	if first.Version != 2 || !first.Applied {
		t.Fatalf("first open schema = %+v, want version 2 applied", first)
	}

	again, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if again.Version != 2 || again.Applied {
		t.Errorf("second run schema = %+v, want version 2 unchanged", again)
	}
}
