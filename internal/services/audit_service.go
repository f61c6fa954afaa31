package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finconsole/internal/core"
)

// AuditOutbox stores events until the ledger worker has written them.
type AuditOutbox interface {
	AppendAuditEvent(ctx context.Context, e core.AuditEvent) error
}

// AuditPublisher announces stored events to the ledger worker.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, e core.AuditEvent) error
}

// AuditService records console mutations in the outbox and publishes them.
type AuditService struct {
	outbox    AuditOutbox
	publisher AuditPublisher
	now       func() time.Time
}

// NewAuditService wires the outbox and an optional publisher. With a nil
// publisher events reach the ledger through the worker's sweep only.
func NewAuditService(outbox AuditOutbox, publisher AuditPublisher) *AuditService {
	return &AuditService{
		outbox:    outbox,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record saves one event and publishes it. Only the outbox write can fail
// the call; a failed publish is picked up by the sweep.
func (s *AuditService) Record(ctx context.Context, action core.AuditAction, res core.Resource, id int64, label, actor string, payload any) (core.AuditEvent, error) {
	e := core.AuditEvent{
		EventID:     uuid.NewString(),
		Action:      action,
		Resource:    res,
		EntityID:    id,
		EntityLabel: label,
		Actor:       actor,
		OccurredAt:  s.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return e, fmt.Errorf("marshal audit payload: %w", err)
		}
		e.Payload = raw
	}

	if err := s.outbox.AppendAuditEvent(ctx, e); err != nil {
		return e, fmt.Errorf("save audit event: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, leaving audit event to the sweep", "event_id", e.EventID)
		return e, nil
	}
	if err := s.publisher.PublishAuditEvent(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish audit event",
			"event_id", e.EventID, "error", err)
	}
	return e, nil
}
