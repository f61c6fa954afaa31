package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"finconsole/internal/api"
	"finconsole/internal/core"
	"finconsole/internal/export"
	applog "finconsole/internal/log"
)

// exportPageSize is the page size used when paging through the Entity
// Store for an export.
const exportPageSize = 100

// handleExportTransactions downloads every transaction matching the list
// filters as an XLSX workbook.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, c, ok := s.sessionClient(r)
	if !ok {
		s.redirectToLogin(w, r)
		return
	}
	k := s.kinds[core.ResourceTransaction]
	q := ParseListQuery(r.URL.Query(), k.FilterKeys())

	start := time.Now()
	txs, err := export.FetchTransactions(ctx, c, q.Params(exportPageSize), s.opts.ExportParallel)
	if err != nil {
		s.failRequest(w, r, applog.OpExport, core.ResourceTransaction, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTransactions(&buf, txs); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to write workbook", applog.FieldOperation, applog.OpExport, applog.FieldError, err)
		ToastError(http.StatusInternalServerError, api.MsgUnknown).Write(w)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Transactions exported",
		applog.FieldOperation, applog.OpExport,
		"rows", len(txs),
		applog.FieldDuration, time.Since(start).Milliseconds())

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
