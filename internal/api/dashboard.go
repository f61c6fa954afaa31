package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"finconsole/internal/core"
)

// Trend periods accepted by /api/dashboard/trends.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// ValidPeriod reports whether p is a trend period the Entity Store knows.
func ValidPeriod(p string) bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// DashboardFilter holds the optional filters shared by the dashboard
// endpoints. Dates are YYYY-MM-DD.
type DashboardFilter struct {
	StartDate    string
	EndDate      string
	DepartmentID int64
	BudgetTypeID int64
	Period       string
	Limit        int
}

func (f DashboardFilter) values() url.Values {
	v := url.Values{}
	if f.StartDate != "" {
		v.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		v.Set("end_date", f.EndDate)
	}
	if f.DepartmentID > 0 {
		v.Set("deparment_id", strconv.FormatInt(f.DepartmentID, 10))
	}
	return v
}

func (c *Client) Overview(ctx context.Context, f DashboardFilter) (core.DashboardOverview, error) {
	var out core.DashboardOverview
	err := c.get(ctx, "/api/dashboard/overview", f.values(), &out)
	return out, err
}

func (c *Client) Trends(ctx context.Context, f DashboardFilter) (core.Trends, error) {
	v := f.values()
	period := f.Period
	if !ValidPeriod(period) {
		period = PeriodMonth
	}
	v.Set("period", period)

	var out core.Trends
	err := c.get(ctx, "/api/dashboard/trends", v, &out)
	if out.Period == "" {
		out.Period = period
	}
	return out, err
}

func (c *Client) CashFlowStats(ctx context.Context, f DashboardFilter) ([]core.StatRow, error) {
	return c.statRows(ctx, "/api/dashboard/cashflow-stats", f.values())
}

func (c *Client) TopDepartments(ctx context.Context, f DashboardFilter) ([]core.StatRow, error) {
	v := f.values()
	limit := f.Limit
	if limit <= 0 {
		limit = 5
	}
	v.Set("limit", strconv.Itoa(limit))
	return c.statRows(ctx, "/api/dashboard/top-departments", v)
}

func (c *Client) BudgetUtilization(ctx context.Context, f DashboardFilter) ([]core.StatRow, error) {
	v := f.values()
	v.Del("deparment_id")
	if f.BudgetTypeID > 0 {
		v.Set("budget_type_id", strconv.FormatInt(f.BudgetTypeID, 10))
	}
	return c.statRows(ctx, "/api/dashboard/budget-utilization", v)
}

// statRows decodes a stats payload whose data is either an array of rows or
// an object holding one array of rows.
func (c *Client) statRows(ctx context.Context, endpoint string, v url.Values) ([]core.StatRow, error) {
	var raw json.RawMessage
	if err := c.get(ctx, endpoint, v, &raw); err != nil {
		return nil, err
	}
	rows, err := decodeStatRows(raw)
	if err != nil {
		return nil, &Error{Kind: KindServerNoBody, Message: MsgInvalidData, Err: fmt.Errorf("decode %s: %w", endpoint, err)}
	}
	return rows, nil
}

func decodeStatRows(raw json.RawMessage) ([]core.StatRow, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rows []core.StatRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := json.Unmarshal(obj[k], &rows); err == nil {
			return rows, nil
		}
	}
	return []core.StatRow{core.StatRow(toAny(obj))}, nil
}

func toAny(obj map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		var x any
		if json.Unmarshal(v, &x) == nil {
			out[k] = x
		}
	}
	return out
}

// Dashboard is everything the dashboard page renders.
type Dashboard struct {
	Overview          core.DashboardOverview
	Trends            core.Trends
	CashFlowStats     []core.StatRow
	TopDepartments    []core.StatRow
	BudgetUtilization []core.StatRow
}

// FetchDashboard loads all dashboard panels concurrently. The overview and
// trends are required; a failing secondary panel is left empty and its
// error is returned in partial.
func (c *Client) FetchDashboard(ctx context.Context, f DashboardFilter) (d Dashboard, partial []error, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	g.Go(func() error {
		var err error
		d.Overview, err = c.Overview(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		d.Trends, err = c.Trends(gctx, f)
		return err
	})

	secondary := make([]error, 3)
	g.Go(func() error {
		d.CashFlowStats, secondary[0] = c.CashFlowStats(gctx, f)
		return nil
	})
	g.Go(func() error {
		d.TopDepartments, secondary[1] = c.TopDepartments(gctx, f)
		return nil
	})
	g.Go(func() error {
		d.BudgetUtilization, secondary[2] = c.BudgetUtilization(gctx, f)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, nil, err
	}
	for _, e := range secondary {
		if e != nil {
			partial = append(partial, e)
		}
	}
	return d, partial, nil
}
