// Package export renders console lists as spreadsheet downloads.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"finconsole/internal/api"
	"finconsole/internal/core"
)

const (
	SheetName   = "Transactions"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the first row of the transaction sheet.
var Header = []string{"ID", "Day", "Description", "Amount", "Cash flow", "Budget"}

// FetchTransactions loads every transaction matching p. The first page
// tells how many pages there are; the rest are fetched concurrently, at
// most parallel at a time, and reassembled in page order.
func FetchTransactions(ctx context.Context, c *api.Client, p api.ListParams, parallel int) ([]core.Transaction, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if parallel < 1 {
		parallel = 1
	}
	p.Page = 1
	first, err := api.List[core.Transaction](ctx, c, core.ResourceTransaction, p)
	if err != nil {
		return nil, err
	}
	total := first.Pagination.TotalPages
	if total <= 1 || len(first.Items) == 0 {
		return first.Items, nil
	}

	pages := make([][]core.Transaction, total)
	pages[0] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for n := 2; n <= total; n++ {
		params := p
		params.Page = n
		g.Go(func() error {
			page, err := api.List[core.Transaction](gctx, c, core.ResourceTransaction, params)
			if err != nil {
				return fmt.Errorf("export page %d: %w", params.Page, err)
			}
			pages[params.Page-1] = page.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]core.Transaction, 0, len(first.Items)*total)
	for _, items := range pages {
		all = append(all, items...)
	}
	return all, nil
}

// WriteTransactions writes txs as an XLSX workbook to w.
func WriteTransactions(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			tx.ID,
			tx.TransactionDay.String(),
			tx.Description,
			tx.Amount.String(),
			cashFlowLabel(tx),
			budgetLabel(tx),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for col, width := range map[string]float64{"A": 8, "B": 12, "C": 40, "D": 16, "E": 28, "F": 28} {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename is the download name for an export made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("transactions_%s.xlsx", now.Format("20060102"))
}

func cashFlowLabel(tx core.Transaction) string {
	if tx.CashFlow != nil {
		return tx.CashFlow.Label()
	}
	return fmt.Sprintf("#%d", tx.CashFlowID)
}

func budgetLabel(tx core.Transaction) string {
	if tx.Budget != nil {
		return tx.Budget.Label()
	}
	return fmt.Sprintf("#%d", tx.BudgetID)
}
