package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finconsole/internal/api"
	"finconsole/internal/core"
	applog "finconsole/internal/log"
	"finconsole/internal/storage"
)

// fakeStore is a tiny Entity Store holding cash flow types and budgets.
type fakeStore struct {
	mu        sync.Mutex
	types     []core.CashFlowType
	lists     atomic.Int64
	lastBody  map[string]any
	failWrite bool
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		body, _ := io.ReadAll(r.Body)
		f.lastBody = nil
		_ = json.Unmarshal(body, &f.lastBody)
		if f.failWrite {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"success":false,"message":"Code already exists"}`)
			return
		}
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/cash-flow-type":
		f.lists.Add(1)
		writeData(w, map[string]any{
			"cashFlowTypes": f.types,
			"pagination":    map[string]int{"currentPage": 1, "totalPages": 1, "totalItems": len(f.types), "itemsPerPage": 100},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/budget":
		f.lists.Add(1)
		writeData(w, map[string]any{
			"budgets":    []core.Budget{{ID: 5, Name: "Operations", Code: "OPS"}},
			"pagination": map[string]int{"currentPage": 1, "totalPages": 1},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/cash-flow-type":
		writeData(w, core.CashFlowType{ID: 99, Name: f.lastBody["name"].(string), Code: f.lastBody["code"].(string)})
	case r.Method == http.MethodPut && r.URL.Path == "/api/cash-flow-type/1":
		writeData(w, core.CashFlowType{ID: 1, Name: "Income", Code: "IN"})
	case r.Method == http.MethodDelete:
		io.WriteString(w, `{"success":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"message":"Not found"}`)
	}
}

func (f *fakeStore) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func writeData(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.AuditEvent
	err    error
}

func (p *recordingPublisher) PublishAuditEvent(_ context.Context, e core.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func ptr(v int64) *int64 { return &v }

type fixture struct {
	store   *fakeStore
	client  *api.Client
	repo    *storage.SQLiteRepository
	pub     *recordingPublisher
	options *OptionService
	svc     *EntityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &fakeStore{types: []core.CashFlowType{
		{ID: 1, Name: "Income", Code: "IN"},
		{ID: 2, Name: "Salary", Code: "IN-S", ParentID: ptr(1)},
		{ID: 3, Name: "Bonus", Code: "IN-B", ParentID: ptr(2)},
		{ID: 4, Name: "Expense", Code: "EX"},
	}}
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	logger := applog.New(applog.Config{Output: io.Discard, Component: "test"})
	options := NewOptionService(100, 16, time.Minute)
	return &fixture{
		store:   store,
		client:  client.WithToken("tok"),
		repo:    repo,
		pub:     pub,
		options: options,
		svc:     NewEntityService(NewAuditService(repo, pub), options, logger, 100),
	}
}

func TestCreate_RecordsAuditEventAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := &core.CashFlowTypeInput{Name: "Grants", Code: "IN-G", ParentID: ptr(1)}
	created, err := Create[core.CashFlowType](ctx, f.svc, f.client, core.ResourceCashFlowType, in, "ana@example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 99 {
		t.Fatalf("created = %+v", created)
	}

	if len(f.pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.pub.events))
	}
	ev := f.pub.events[0]
	if ev.Action != core.AuditCreate || ev.EntityID != 99 || ev.EntityLabel != "IN-G - Grants" || ev.Actor != "ana@example.com" {
		t.Errorf("event = %+v", ev)
	}

	stored, synced, err := f.repo.GetAuditEvent(ctx, ev.EventID)
	if err != nil || synced {
		t.Fatalf("outbox entry = %+v synced=%v err=%v", stored, synced, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(stored.Payload, &payload); err != nil || payload["code"] != "IN-G" {
		t.Errorf("payload = %s (%v)", stored.Payload, err)
	}
}

func TestCreate_ValidationStopsBeforeRequest(t *testing.T) {
	f := newFixture(t)

	_, err := Create[core.CashFlowType](context.Background(), f.svc, f.client, core.ResourceCashFlowType,
		&core.CashFlowTypeInput{Code: "X"}, "ana")
	if kind, _ := api.Describe(err); kind != api.KindValidation {
		t.Fatalf("kind = %v, err = %v", kind, err)
	}
	if f.store.body() != nil {
		t.Error("no write should reach the store")
	}
	if n, _ := f.repo.CountPendingAuditEvents(context.Background()); n != 0 {
		t.Errorf("outbox has %d events", n)
	}
}

func TestUpdate_RejectsCyclicParent(t *testing.T) {
	tests := []struct {
		name    string
		parent  *int64
		wantErr string
	}{
		{"self", ptr(1), "a cash flow type cannot be its own parent"},
		{"child", ptr(2), "a cash flow type cannot be moved under one of its descendants"},
		{"grandchild", ptr(3), "a cash flow type cannot be moved under one of its descendants"},
		{"unknown", ptr(42), "the selected parent cash flow type does not exist"},
		{"other root", ptr(4), ""},
		{"detach", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := &core.CashFlowTypeInput{Name: "Income", Code: "IN", ParentID: tt.parent}
			_, err := Update[core.CashFlowType](context.Background(), f.svc, f.client, core.ResourceCashFlowType, 1, in, "ana")

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Update() error = %v", err)
				}
				if _, present := f.store.body()["parentId"]; !present {
					t.Error("parentId must always be sent")
				}
				return
			}
			kind, msg := api.Describe(err)
			if kind != api.KindValidation || msg != tt.wantErr {
				t.Fatalf("Describe() = %v %q, want validation %q", kind, msg, tt.wantErr)
			}
		})
	}
}

func TestUpdate_ServerErrorIsNotAudited(t *testing.T) {
	f := newFixture(t)
	f.store.failWrite = true

	_, err := Update[core.CashFlowType](context.Background(), f.svc, f.client, core.ResourceCashFlowType, 1,
		&core.CashFlowTypeInput{Name: "Income", Code: "IN"}, "ana")
	kind, msg := api.Describe(err)
	if kind != api.KindServer || msg != "Code already exists" {
		t.Fatalf("Describe() = %v %q", kind, msg)
	}
	if len(f.pub.events) != 0 {
		t.Error("failed mutation must not be audited")
	}
}

func TestDelete_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	if err := f.svc.Delete(context.Background(), f.client, core.ResourceBudget, 5, "OPS - Operations", "ana"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := f.repo.CountPendingAuditEvents(context.Background()); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

func TestAuditService_WithoutPublisher(t *testing.T) {
	f := newFixture(t)
	audit := NewAuditService(f.repo, nil)

	ev, err := audit.Record(context.Background(), core.AuditDelete, core.ResourceDepartment, 3, "D - Sales", "ana", nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, synced, err := f.repo.GetAuditEvent(context.Background(), ev.EventID); err != nil || synced {
		t.Fatalf("stored event synced=%v err=%v", synced, err)
	}
}

func TestOptionService_CachesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	opts, err := f.options.Options(ctx, "s1", f.client, core.ResourceCashFlowType)
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	wantIDs := []int64{1, 2, 3, 4}
	wantDepth := []int{0, 1, 2, 0}
	if len(opts) != len(wantIDs) {
		t.Fatalf("options = %+v", opts)
	}
	for i, o := range opts {
		if o.ID != wantIDs[i] || o.Depth != wantDepth[i] {
			t.Fatalf("option %d = %+v", i, o)
		}
	}

	if _, err := f.options.Options(ctx, "s1", f.client, core.ResourceCashFlowType); err != nil {
		t.Fatal(err)
	}
	if n := f.store.lists.Load(); n != 1 {
		t.Fatalf("list calls = %d, want 1 (cached)", n)
	}

	parents, err := f.options.ParentOptions(ctx, "s1", f.client, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 2 || parents[0].ID != 1 || parents[1].ID != 4 {
		t.Fatalf("parent options = %+v", parents)
	}

	if _, err := Create[core.CashFlowType](ctx, f.svc, f.client, core.ResourceCashFlowType,
		&core.CashFlowTypeInput{Name: "New", Code: "N"}, "ana"); err != nil {
		t.Fatal(err)
	}
	before := f.store.lists.Load()
	if _, err := f.options.Options(ctx, "s1", f.client, core.ResourceCashFlowType); err != nil {
		t.Fatal(err)
	}
	if f.store.lists.Load() != before+1 {
		t.Error("mutation should invalidate cached options")
	}
}

func TestOptionService_FlatOptions(t *testing.T) {
	f := newFixture(t)
	opts, err := f.options.Options(context.Background(), "s1", f.client, core.ResourceBudget)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 1 || opts[0].ID != 5 || opts[0].Label != "OPS - Operations" {
		t.Fatalf("options = %+v", opts)
	}
	if _, err := f.options.Options(context.Background(), "s1", f.client, core.ResourceTransaction); err == nil {
		t.Error("transactions have no option list")
	}
}

func TestEntityRef(t *testing.T) {
	tests := []struct {
		in    any
		id    int64
		label string
	}{
		{core.Department{ID: 1, Name: "Sales", CodeDepartment: "D1"}, 1, "D1 - Sales"},
		{core.BudgetType{ID: 2, Name: "Capex"}, 2, "Capex"},
		{core.Transaction{ID: 3}, 3, "#3"},
		{core.Transaction{ID: 4, Description: "Rent"}, 4, "Rent"},
		{"nope", 0, ""},
	}
	for _, tt := range tests {
		id, label := EntityRef(tt.in)
		if id != tt.id || label != tt.label {
			t.Errorf("EntityRef(%v) = %d %q", tt.in, id, label)
		}
	}
}
