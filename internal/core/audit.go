package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction is the kind of mutation recorded in the audit ledger.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditEvent records one successful create, update or delete performed
// through the console.
type AuditEvent struct {
	EventID     string          `json:"event_id"`
	Action      AuditAction     `json:"action"`
	Resource    Resource        `json:"resource"`
	EntityID    int64           `json:"entity_id"`
	EntityLabel string          `json:"entity_label"`
	Actor       string          `json:"actor"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Validate checks the fields every ledger row needs.
func (e AuditEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("audit event: missing event id")
	}
	switch e.Action {
	case AuditCreate, AuditUpdate, AuditDelete:
	default:
		return fmt.Errorf("audit event %s: unknown action %q", e.EventID, e.Action)
	}
	if _, err := ParseResource(string(e.Resource)); err != nil {
		return fmt.Errorf("audit event %s: %w", e.EventID, err)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("audit event %s: missing timestamp", e.EventID)
	}
	return nil
}

// LedgerRow is the flat row appended to the audit ledger sheet.
func (e AuditEvent) LedgerRow() []string {
	return []string{
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.EventID,
		string(e.Action),
		string(e.Resource),
		fmt.Sprintf("%d", e.EntityID),
		e.EntityLabel,
		e.Actor,
	}
}

// LedgerHeader names the columns of LedgerRow.
var LedgerHeader = []string{"Occurred at", "Event", "Action", "Resource", "Entity ID", "Entity", "Actor"}
