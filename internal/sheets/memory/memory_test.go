package memory

import (
	"context"
	"testing"
	"time"

	"finconsole/internal/core"
)

func event(id string) core.AuditEvent {
	return core.AuditEvent{
		EventID:     id,
		Action:      core.AuditCreate,
		Resource:    core.ResourceDepartment,
		EntityID:    7,
		EntityLabel: "D01 - Finance",
		Actor:       "ana@example.com",
		OccurredAt:  time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestLedger_Append(t *testing.T) {
	l := New()
	ctx := context.Background()

	ref, err := l.AppendAuditEvent(ctx, event("a"))
	if err != nil {
		t.Fatalf("AppendAuditEvent() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	again, err := l.AppendAuditEvent(ctx, event("a"))
	if err != nil || again != ref {
		t.Fatalf("re-append = %q, %v; want %q", again, err, ref)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	rows, _ := l.ListAuditRows(ctx)
	if rows[0][0] != "2024-05-01T09:30:00Z" || rows[0][5] != "D01 - Finance" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestLedger_RejectsInvalidEvent(t *testing.T) {
	l := New()
	bad := event("b")
	bad.Action = "rename"
	if _, err := l.AppendAuditEvent(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if l.Len() != 0 {
		t.Fatal("invalid event must not be stored")
	}
}
