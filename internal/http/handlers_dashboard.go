package http

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"finconsole/internal/api"
	"finconsole/internal/core"
	"finconsole/internal/dashboard"
	"finconsole/internal/hierarchy"
	applog "finconsole/internal/log"
)

// topDepartments is how many department rows the overview shows.
const topDepartments = 5

type dashboardPage struct {
	User        core.User
	Nav         []core.Resource
	Departments []hierarchy.Option
	Query       url.Values
	Periods     []string
	Filter      api.DashboardFilter
}

type statCard struct {
	Label string
	Value string
}

// statPanel is a loosely shaped stats table. Columns are the union of the
// row keys in sorted order.
type statPanel struct {
	Title   string
	Columns []string
	Rows    [][]string
}

type dashboardPanels struct {
	Cards       []statCard
	Departments []core.DepartmentStat
	BudgetTypes []core.BudgetTypeStat
	Trends      []dashboard.TrendRow
	Period      string
	Panels      []statPanel
	Partial     bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, c, ok := s.sessionClient(r)
	if !ok {
		s.redirectToLogin(w, r)
		return
	}
	f := ParseDashboardFilter(r.URL.Query())

	page := dashboardPage{
		User:    sess.User,
		Nav:     core.Resources,
		Query:   r.URL.Query(),
		Periods: []string{api.PeriodDay, api.PeriodWeek, api.PeriodMonth, api.PeriodYear},
		Filter:  f,
	}
	opts, err := s.options.Options(ctx, sess.ID, c, core.ResourceDepartment)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.failRequest(w, r, applog.OpRead, core.ResourceDepartment, err)
			return
		}
		applog.FromContext(ctx).WarnContext(ctx, "Department filter unavailable", applog.FieldError, err)
	}
	page.Departments = opts
	s.render(w, r, http.StatusOK, "dashboard_page", page)
}

// handleDashboardPanels loads every panel for the filter. Overview and
// trends are required; the other panels degrade to empty with a warning.
func (s *Server) handleDashboardPanels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, c, ok := s.sessionClient(r)
	if !ok {
		s.redirectToLogin(w, r)
		return
	}
	f := ParseDashboardFilter(r.URL.Query())

	d, partial, err := c.FetchDashboard(ctx, f)
	if err != nil {
		s.failRequest(w, r, applog.OpRead, "dashboard", err)
		return
	}

	view := s.dashboardView(d)
	if len(partial) > 0 {
		view.Partial = true
		for _, e := range partial {
			kind, _ := api.Describe(e)
			applog.FromContext(ctx).WarnContext(ctx, "Dashboard panel unavailable",
				applog.FieldErrorKind, kind.String(), applog.FieldError, e)
		}
		if api.IsUnauthorized(partial[0]) {
			s.failRequest(w, r, applog.OpRead, "dashboard", partial[0])
			return
		}
	}

	b := NewHTMXResponse()
	if view.Partial {
		b.TriggerWarningNotification("Some dashboard panels could not be loaded")
	}
	var body strings.Builder
	if err := s.templates.ExecuteTemplate(&body, "dashboard_panels", view); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Template execution failed", "template", "dashboard_panels", applog.FieldError, err)
		ToastError(http.StatusInternalServerError, api.MsgUnknown).Write(w)
		return
	}
	b.BodyHTML(body.String()).Write(w)
}

func (s *Server) dashboardView(d api.Dashboard) dashboardPanels {
	ov := d.Overview
	v := dashboardPanels{
		Cards: []statCard{
			{Label: "Total transactions", Value: s.formatter.Count(ov.Overview.TotalTransactions)},
			{Label: "Total amount", Value: s.formatter.Currency(ov.Overview.TotalAmount)},
			{Label: "Departments", Value: s.formatter.Count(core.Count(len(ov.DepartmentStats)))},
			{Label: "Budget types", Value: s.formatter.Count(core.Count(len(ov.BudgetTypeStats)))},
		},
		Departments: ov.DepartmentStats,
		BudgetTypes: ov.BudgetTypeStats,
		Trends:      dashboard.TrendRows(d.Trends.Trends),
		Period:      d.Trends.Period,
		Panels: []statPanel{
			newStatPanel("Cash flow statistics", d.CashFlowStats),
			newStatPanel("Top departments", d.TopDepartments),
			newStatPanel("Budget utilization", d.BudgetUtilization),
		},
	}
	if len(v.Departments) > topDepartments {
		v.Departments = v.Departments[:topDepartments]
	}
	return v
}

func newStatPanel(title string, rows []core.StatRow) statPanel {
	p := statPanel{Title: title}
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				p.Columns = append(p.Columns, k)
			}
		}
	}
	sort.Strings(p.Columns)
	for _, row := range rows {
		cells := make([]string, len(p.Columns))
		for i, col := range p.Columns {
			if val, ok := row[col]; ok && val != nil {
				cells[i] = fmt.Sprint(val)
			}
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}
