package memory

import (
	"context"
	"fmt"
	"sync"

	"finconsole/internal/core"
	ports "finconsole/internal/sheets"
)

var (
	_ ports.AuditLedgerWriter = (*Ledger)(nil)
	_ ports.AuditLedgerReader = (*Ledger)(nil)
)

// Ledger keeps audit rows in process memory. Appending an event id that is
// already present returns the existing reference.
type Ledger struct {
	mu   sync.Mutex
	rows [][]string
	refs map[string]string
}

func New() *Ledger {
	return &Ledger{refs: map[string]string{}}
}

// AppendAuditEvent stores the event row and returns a synthetic row reference.
func (l *Ledger) AppendAuditEvent(_ context.Context, e core.AuditEvent) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if ref, ok := l.refs[e.EventID]; ok {
		return ref, nil
	}
	l.rows = append(l.rows, e.LedgerRow())
	ref := fmt.Sprintf("mem:%d", len(l.rows))
	l.refs[e.EventID] = ref
	return ref, nil
}

// ListAuditRows returns a copy of the stored rows.
func (l *Ledger) ListAuditRows(_ context.Context) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.rows))
	for i, row := range l.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

// Len returns the number of stored rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
