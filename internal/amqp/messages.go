package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finconsole/internal/core"
)

// AuditEventMessage announces an outbox row to the ledger worker. It only
// carries the event id; the worker reads the full event from the outbox.
type AuditEventMessage struct {
	EventID   string           `json:"event_id"`
	Action    core.AuditAction `json:"action"`
	Resource  core.Resource    `json:"resource"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewAuditEventMessage builds the message for e.
func NewAuditEventMessage(e core.AuditEvent) *AuditEventMessage {
	return &AuditEventMessage{
		EventID:   e.EventID,
		Action:    e.Action,
		Resource:  e.Resource,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AuditEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditEventMessageFromJSON decodes a delivery body. A body without an
// event id is rejected.
func AuditEventMessageFromJSON(data []byte) (*AuditEventMessage, error) {
	var msg AuditEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" {
		return nil, fmt.Errorf("audit message without event_id")
	}
	return &msg, nil
}
