package http

// This file implements utilities for parsing and validating HTTP request
// data: list queries, dashboard filters, path ids and entity forms.

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/form"
	"github.com/gorilla/mux"

	"finconsole/internal/api"
	"finconsole/internal/core"
)

var formDecoder = form.NewDecoder()

// ListQuery is what a list partial was asked for.
type ListQuery struct {
	Page    int
	Search  string
	Filters map[string]string
}

// Params turns the query into Entity Store list parameters.
func (q ListQuery) Params(limit int) api.ListParams {
	return api.ListParams{Page: q.Page, Limit: limit, Search: q.Search, Filters: q.Filters}
}

// Values re-encodes the query for pager and export links.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for k, val := range q.Filters {
		v.Set(k, val)
	}
	return v
}

// ParseListQuery reads page, search and the allowed filters. Filters ending
// in _id must be positive integers and date filters must be dates; anything
// else is dropped.
func ParseListQuery(query url.Values, allowed []string) ListQuery {
	q := ListQuery{Page: 1, Search: sanitizeInput(query.Get("search"))}
	if p, err := strconv.Atoi(strings.TrimSpace(query.Get("page"))); err == nil && p > 0 {
		q.Page = p
	}
	for _, key := range allowed {
		v := strings.TrimSpace(query.Get(key))
		if v == "" {
			continue
		}
		switch {
		case strings.HasSuffix(key, "_id"):
			if id, err := strconv.ParseInt(v, 10, 64); err != nil || id <= 0 {
				continue
			}
		case strings.HasSuffix(key, "_date"):
			d, err := core.ParseDate(v)
			if err != nil {
				continue
			}
			v = d.String()
		}
		if q.Filters == nil {
			q.Filters = map[string]string{}
		}
		q.Filters[key] = v
	}
	return q
}

// ParseDashboardFilter reads the dashboard's date range, department and
// trend period. Unknown periods fall back to month.
func ParseDashboardFilter(query url.Values) api.DashboardFilter {
	f := api.DashboardFilter{Period: api.PeriodMonth, Limit: 5}
	if d, err := core.ParseDate(query.Get("start_date")); err == nil {
		f.StartDate = d.String()
	}
	if d, err := core.ParseDate(query.Get("end_date")); err == nil {
		f.EndDate = d.String()
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(query.Get("department_id")), 10, 64); err == nil && id > 0 {
		f.DepartmentID = id
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(query.Get("budget_type_id")), 10, 64); err == nil && id > 0 {
		f.BudgetTypeID = id
	}
	if p := strings.TrimSpace(query.Get("period")); api.ValidPeriod(p) {
		f.Period = p
	}
	return f
}

var errBadID = errors.New("invalid id")

// PathID reads the {id} route variable.
func PathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// DecodeForm parses the request form into dst, a pointer to one of the
// core input structs. Control characters are stripped from every value.
func DecodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	clean := make(url.Values, len(r.PostForm))
	for k, vals := range r.PostForm {
		for _, v := range vals {
			clean.Add(k, sanitizeInput(v))
		}
	}
	return formDecoder.Decode(dst, clean)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return ToastError(http.StatusBadRequest, "Invalid request format")
	}
	return nil
}

// isHTMX reports whether the request was issued by HTMX.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
