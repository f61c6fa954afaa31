package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"finconsole/internal/api"
	"finconsole/internal/core"
)

func TestParseListQuery(t *testing.T) {
	allowed := []string{"cash_flow_id", "budget_id", "start_date", "end_date"}
	tests := []struct {
		name        string
		query       url.Values
		wantPage    int
		wantSearch  string
		wantFilters map[string]string
	}{
		{
			name:     "empty query defaults to page one",
			query:    url.Values{},
			wantPage: 1,
		},
		{
			name:        "page search and filters",
			query:       url.Values{"page": {"3"}, "search": {"  rent \x00"}, "cash_flow_id": {"7"}},
			wantPage:    3,
			wantSearch:  "rent",
			wantFilters: map[string]string{"cash_flow_id": "7"},
		},
		{
			name:     "invalid page falls back",
			query:    url.Values{"page": {"-2"}},
			wantPage: 1,
		},
		{
			name:     "non numeric ids are dropped",
			query:    url.Values{"budget_id": {"abc"}, "cash_flow_id": {"0"}},
			wantPage: 1,
		},
		{
			name:        "dates are normalized",
			query:       url.Values{"start_date": {"2024-03-01T10:00:00Z"}, "end_date": {"nope"}},
			wantPage:    1,
			wantFilters: map[string]string{"start_date": "2024-03-01"},
		},
		{
			name:     "unknown keys are ignored",
			query:    url.Values{"department_id": {"4"}},
			wantPage: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ParseListQuery(tt.query, allowed)
			if q.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", q.Page, tt.wantPage)
			}
			if q.Search != tt.wantSearch {
				t.Errorf("Search = %q, want %q", q.Search, tt.wantSearch)
			}
			if len(q.Filters) != len(tt.wantFilters) {
				t.Fatalf("Filters = %v, want %v", q.Filters, tt.wantFilters)
			}
			for k, v := range tt.wantFilters {
				if q.Filters[k] != v {
					t.Errorf("Filters[%s] = %q, want %q", k, q.Filters[k], v)
				}
			}
		})
	}
}

func TestListQueryParamsAndValues(t *testing.T) {
	q := ListQuery{Page: 2, Search: "ops", Filters: map[string]string{"budget_id": "3"}}

	p := q.Params(25)
	if p.Page != 2 || p.Limit != 25 || p.Search != "ops" || p.Filters["budget_id"] != "3" {
		t.Fatalf("Params = %+v", p)
	}

	v := q.Values()
	if v.Get("search") != "ops" || v.Get("budget_id") != "3" {
		t.Fatalf("Values = %v", v)
	}
	if v.Has("page") {
		t.Error("Values should leave the page to the pager")
	}
}

func TestParseDashboardFilter(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  api.DashboardFilter
	}{
		{
			name:  "defaults",
			query: url.Values{},
			want:  api.DashboardFilter{Period: api.PeriodMonth, Limit: 5},
		},
		{
			name: "all filters",
			query: url.Values{
				"start_date":     {"2024-01-01"},
				"end_date":       {"2024-12-31"},
				"department_id":  {"2"},
				"budget_type_id": {"9"},
				"period":         {"week"},
			},
			want: api.DashboardFilter{
				StartDate:    "2024-01-01",
				EndDate:      "2024-12-31",
				DepartmentID: 2,
				BudgetTypeID: 9,
				Period:       api.PeriodWeek,
				Limit:        5,
			},
		},
		{
			name:  "invalid values are ignored",
			query: url.Values{"start_date": {"01/02/2024"}, "department_id": {"-1"}, "period": {"decade"}},
			want:  api.DashboardFilter{Period: api.PeriodMonth, Limit: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDashboardFilter(tt.query); got != tt.want {
				t.Errorf("ParseDashboardFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantErr bool
	}{
		{"valid", map[string]string{"id": "42"}, 42, false},
		{"zero", map[string]string{"id": "0"}, 0, true},
		{"text", map[string]string{"id": "abc"}, 0, true},
		{"missing", map[string]string{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)
			got, err := PathID(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PathID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PathID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func newFormRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDecodeForm(t *testing.T) {
	t.Run("transaction", func(t *testing.T) {
		var in core.TransactionInput
		req := newFormRequest("cash_flow_id=4&budget_id=2&description=+Paper%00+&amount=-1500&transaction_day=2024-05-02")
		if err := DecodeForm(req, &in); err != nil {
			t.Fatalf("DecodeForm() error = %v", err)
		}
		want := core.TransactionInput{
			CashFlowID:     4,
			BudgetID:       2,
			Description:    "Paper",
			Amount:         "-1500",
			TransactionDay: "2024-05-02",
		}
		if in != want {
			t.Errorf("decoded = %+v, want %+v", in, want)
		}
	})

	t.Run("empty parent stays nil", func(t *testing.T) {
		var in core.CashFlowTypeInput
		if err := DecodeForm(newFormRequest("name=Ops&code=OPS&parentId="), &in); err != nil {
			t.Fatalf("DecodeForm() error = %v", err)
		}
		if in.ParentID != nil {
			t.Errorf("ParentID = %v, want nil", *in.ParentID)
		}
	})

	t.Run("parent id", func(t *testing.T) {
		var in core.CashFlowTypeInput
		if err := DecodeForm(newFormRequest("name=Ops&code=OPS&parentId=12"), &in); err != nil {
			t.Fatalf("DecodeForm() error = %v", err)
		}
		if in.ParentID == nil || *in.ParentID != 12 {
			t.Errorf("ParentID = %v, want 12", in.ParentID)
		}
	})

	t.Run("bad number", func(t *testing.T) {
		var in core.BudgetInput
		if err := DecodeForm(newFormRequest("name=B&code=C&budget_type_id=x"), &in); err == nil {
			t.Error("expected an error for a non numeric id")
		}
	})
}

func TestIsHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTMX(req) {
		t.Error("plain request reported as HTMX")
	}
	req.Header.Set("HX-Request", "true")
	if !isHTMX(req) {
		t.Error("HTMX request not detected")
	}
}
