package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finconsole/internal/amqp"
	"finconsole/internal/core"
	"finconsole/internal/sheets"
	"finconsole/internal/storage"
)

// Outbox is the part of the SQLite repository the worker needs.
type Outbox interface {
	GetAuditEvent(ctx context.Context, eventID string) (core.AuditEvent, bool, error)
	GetPendingAuditEvents(ctx context.Context, limit int) ([]storage.PendingAuditEvent, error)
	MarkSynced(ctx context.Context, eventID string) error
	MarkSyncError(ctx context.Context, eventID string, cause error) error
}

// LedgerWorker copies audit events from the outbox to the audit ledger.
type LedgerWorker struct {
	outbox    Outbox
	ledger    sheets.AuditLedgerWriter
	batchSize int
}

func NewLedgerWorker(outbox Outbox, ledger sheets.AuditLedgerWriter, batchSize int) *LedgerWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &LedgerWorker{
		outbox:    outbox,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleAuditMessage processes one message from AMQP. Messages for events
// already in the ledger are acknowledged without writing again. Messages
// for unknown events are dropped.
func (w *LedgerWorker) HandleAuditMessage(ctx context.Context, msg *amqp.AuditEventMessage) error {
	event, synced, err := w.outbox.GetAuditEvent(ctx, msg.EventID)
	if errors.Is(err, storage.ErrEventNotFound) {
		slog.WarnContext(ctx, "Audit message for unknown event, dropping", "event_id", msg.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get audit event from outbox: %w", err)
	}
	if synced {
		slog.DebugContext(ctx, "Audit event already in ledger", "event_id", msg.EventID)
		return nil
	}
	return w.syncEvent(ctx, event)
}

// ProcessPending writes up to one batch of unsynced events. It backs up
// the AMQP path when messages are lost or AMQP is disabled.
func (w *LedgerWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	pending, err := w.outbox.GetPendingAuditEvents(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending audit events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending audit events", "count", len(pending))

	failed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncEvent(ctx, p.Event); err != nil {
			slog.ErrorContext(ctx, "Failed to sync audit event",
				"event_id", p.Event.EventID,
				"attempts", p.SyncAttempts+1,
				"error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending audit events processed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

func (w *LedgerWorker) syncEvent(ctx context.Context, e core.AuditEvent) error {
	ref, err := w.ledger.AppendAuditEvent(ctx, e)
	if err != nil {
		if markErr := w.outbox.MarkSyncError(ctx, e.EventID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "event_id", e.EventID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	// The row is written; a failed mark only means a later duplicate attempt.
	if err := w.outbox.MarkSynced(ctx, e.EventID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "event_id", e.EventID, "error", err)
	}

	slog.InfoContext(ctx, "Audit event written to ledger",
		"event_id", e.EventID,
		"action", e.Action,
		"resource", e.Resource,
		"entity_id", e.EntityID,
		"ledger_ref", ref)
	return nil
}
