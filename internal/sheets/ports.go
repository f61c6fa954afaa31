package sheets

import (
	"context"

	"finconsole/internal/core"
)

// Ports for outbound adapters.
type (
	// AuditLedgerWriter appends one audit event to the ledger and returns a
	// reference to the written row.
	AuditLedgerWriter interface {
		AppendAuditEvent(ctx context.Context, e core.AuditEvent) (rowRef string, err error)
	}

	// AuditLedgerReader lists what the ledger holds, oldest first.
	AuditLedgerReader interface {
		ListAuditRows(ctx context.Context) ([][]string, error)
	}
)
