// Package backend selects and builds the audit ledger the worker writes to.
package backend

import (
	"context"
	"fmt"

	"finconsole/internal/config"
	applog "finconsole/internal/log"
	"finconsole/internal/sheets"
	gsheet "finconsole/internal/sheets/google"
	"finconsole/internal/sheets/memory"
)

// Type names a ledger implementation.
type Type string

const (
	MemoryBackend Type = config.LedgerMemory
	SheetsBackend Type = config.LedgerSheets
)

// IsValid reports whether t is a known ledger type.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SheetsBackend:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Ledger is both sides of an audit ledger.
type Ledger interface {
	sheets.AuditLedgerWriter
	sheets.AuditLedgerReader
}

// Factory builds ledgers. sheetsLedger is swapped out in tests.
type Factory struct {
	logger       *applog.Logger
	sheetsLedger func(ctx context.Context, cfg *config.Config) (Ledger, error)
}

// NewFactory creates a ledger factory.
func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{
		logger: logger.WithComponent(applog.ComponentLedger),
		sheetsLedger: func(ctx context.Context, cfg *config.Config) (Ledger, error) {
			return gsheet.NewFromConfig(ctx, cfg)
		},
	}
}

// Ledger builds the ledger named by cfg.LedgerBackend and checks that it
// can be read.
func (f *Factory) Ledger(ctx context.Context, cfg *config.Config) (Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	t := Type(cfg.LedgerBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid ledger backend: %s", t)
	}

	var (
		l   Ledger
		err error
	)
	switch t {
	case SheetsBackend:
		l, err = f.sheetsLedger(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sheets ledger: %w", err)
		}
		f.logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleLedgerSheet)
	default:
		l = memory.New()
		f.logger.Info("Using in-memory ledger")
	}

	rows, err := l.ListAuditRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s ledger: %w", t, err)
	}
	f.logger.Info("Ledger reachable", "backend", t.String(), "rows", len(rows))
	return l, nil
}
