package http

import (
	"context"
	"net/http"
	"strconv"

	"finconsole/internal/api"
	"finconsole/internal/core"
	"finconsole/internal/dashboard"
	"finconsole/internal/services"
)

// Form field kinds, mapped to input types by the form template.
const (
	fieldText     = "text"
	fieldTextarea = "textarea"
	fieldAmount   = "amount"
	fieldDate     = "date"
	fieldSelect   = "select"
	fieldParent   = "parent"
)

// formField is one input of an entity form or list filter bar.
type formField struct {
	Name        string
	Label       string
	Kind        string
	Required    bool
	Placeholder string
	// Source is the resource whose options fill a select.
	Source core.Resource
}

// record is one entity prepared for display.
type record struct {
	ID     int64
	Label  string
	Cells  []string
	Values map[string]string
}

// listing is one page of records. Items keeps the typed page for views
// that need more than cells, like the cash flow type tree.
type listing struct {
	Records    []record
	Pagination api.Pagination
	Items      any
}

// entityKind describes how the console lists, edits and removes one
// resource. The typed work is done by the closures built in kindOf.
type entityKind struct {
	Resource core.Resource
	Singular string
	Columns  []string
	Fields   []formField
	Filters  []formField
	Tree     bool
	Export   bool

	list   func(ctx context.Context, c *api.Client, p api.ListParams) (listing, error)
	get    func(ctx context.Context, c *api.Client, id int64) (record, error)
	create func(ctx context.Context, svc *services.EntityService, c *api.Client, r *http.Request, actor string) (record, error)
	update func(ctx context.Context, svc *services.EntityService, c *api.Client, id int64, r *http.Request, actor string) (record, error)
}

// FilterKeys are the query keys the list partial forwards to the store.
func (k *entityKind) FilterKeys() []string {
	keys := make([]string, len(k.Filters))
	for i, f := range k.Filters {
		keys[i] = f.Name
	}
	return keys
}

var errBadForm = &core.ValidationError{Reason: "The form contains invalid values"}

// kindOf wires the generic api and service calls for entity T with input I.
func kindOf[T any, I any](k entityKind, cells func(T) []string, values func(T) map[string]string) *entityKind {
	toRecord := func(item T) record {
		id, label := services.EntityRef(item)
		return record{ID: id, Label: label, Cells: cells(item), Values: values(item)}
	}
	res := k.Resource

	k.list = func(ctx context.Context, c *api.Client, p api.ListParams) (listing, error) {
		page, err := api.List[T](ctx, c, res, p)
		if err != nil {
			return listing{}, err
		}
		l := listing{Pagination: page.Pagination, Items: page.Items}
		for _, item := range page.Items {
			l.Records = append(l.Records, toRecord(item))
		}
		return l, nil
	}
	k.get = func(ctx context.Context, c *api.Client, id int64) (record, error) {
		item, err := api.Get[T](ctx, c, res, id)
		if err != nil {
			return record{}, err
		}
		return toRecord(item), nil
	}
	k.create = func(ctx context.Context, svc *services.EntityService, c *api.Client, r *http.Request, actor string) (record, error) {
		in := new(I)
		if err := DecodeForm(r, in); err != nil {
			return record{}, errBadForm
		}
		created, err := services.Create[T](ctx, svc, c, res, in, actor)
		if err != nil {
			return record{}, err
		}
		return toRecord(created), nil
	}
	k.update = func(ctx context.Context, svc *services.EntityService, c *api.Client, id int64, r *http.Request, actor string) (record, error) {
		in := new(I)
		if err := DecodeForm(r, in); err != nil {
			return record{}, errBadForm
		}
		updated, err := services.Update[T](ctx, svc, c, res, id, in, actor)
		if err != nil {
			return record{}, err
		}
		rec := toRecord(updated)
		if rec.ID == 0 {
			rec.ID = id
		}
		return rec, nil
	}
	return &k
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func refLabel(label string, id int64) string {
	if label != "" {
		return label
	}
	if id == 0 {
		return ""
	}
	return "#" + strconv.FormatInt(id, 10)
}

func day(ts core.Timestamps) string {
	if ts.CreatedAt.IsZero() {
		return ""
	}
	return ts.CreatedAt.Format("02/01/2006")
}

// newEntityKinds builds the registry of console resources.
func newEntityKinds(f *dashboard.Formatter) map[core.Resource]*entityKind {
	kinds := []*entityKind{
		kindOf[core.Department, core.DepartmentInput](entityKind{
			Resource: core.ResourceDepartment,
			Singular: "department",
			Columns:  []string{"Name", "Code", "Composite code", "Address", "Address code"},
			Fields: []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Required: true, Placeholder: "e.g. Accounting"},
				{Name: "code_department", Label: "Code", Kind: fieldText, Required: true, Placeholder: "e.g. ACC001"},
				{Name: "composite_code", Label: "Composite code", Kind: fieldText, Placeholder: "e.g. ACC-HQ-001"},
				{Name: "address", Label: "Address", Kind: fieldText},
				{Name: "address_code", Label: "Address code", Kind: fieldText},
			},
		}, func(d core.Department) []string {
			return []string{d.Name, d.CodeDepartment, d.CompositeCode, d.Address, d.AddressCode}
		}, func(d core.Department) map[string]string {
			return map[string]string{
				"name": d.Name, "code_department": d.CodeDepartment, "composite_code": d.CompositeCode,
				"address": d.Address, "address_code": d.AddressCode,
			}
		}),

		kindOf[core.BudgetType, core.BudgetTypeInput](entityKind{
			Resource: core.ResourceBudgetType,
			Singular: "budget type",
			Columns:  []string{"Name", "Created", "Updated"},
			Fields: []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Required: true, Placeholder: "e.g. Operating budget"},
			},
		}, func(b core.BudgetType) []string {
			updated := ""
			if !b.UpdatedAt.IsZero() {
				updated = b.UpdatedAt.Format("02/01/2006")
			}
			return []string{b.Name, day(b.Timestamps), updated}
		}, func(b core.BudgetType) map[string]string {
			return map[string]string{"name": b.Name}
		}),

		kindOf[core.Budget, core.BudgetInput](entityKind{
			Resource: core.ResourceBudget,
			Singular: "budget",
			Columns:  []string{"Name", "Code", "Budget type", "Created"},
			Fields: []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Required: true},
				{Name: "code", Label: "Code", Kind: fieldText, Required: true, Placeholder: "e.g. BUD-ACC-Q1-2024"},
				{Name: "budget_type_id", Label: "Budget type", Kind: fieldSelect, Required: true, Source: core.ResourceBudgetType},
			},
			Filters: []formField{
				{Name: "budget_type_id", Label: "Budget type", Kind: fieldSelect, Source: core.ResourceBudgetType},
			},
		}, func(b core.Budget) []string {
			typeName := ""
			if b.BudgetType != nil {
				typeName = b.BudgetType.Name
			}
			return []string{b.Name, b.Code, refLabel(typeName, b.BudgetTypeID), day(b.Timestamps)}
		}, func(b core.Budget) map[string]string {
			return map[string]string{"name": b.Name, "code": b.Code, "budget_type_id": idString(b.BudgetTypeID)}
		}),

		kindOf[core.CashFlowType, core.CashFlowTypeInput](entityKind{
			Resource: core.ResourceCashFlowType,
			Singular: "cash flow type",
			Columns:  []string{"Name", "Code", "Parent", "Created"},
			Fields: []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Required: true},
				{Name: "code", Label: "Code", Kind: fieldText, Required: true, Placeholder: "e.g. CFT-OPR"},
				{Name: "parentId", Label: "Parent (optional)", Kind: fieldParent, Source: core.ResourceCashFlowType},
			},
			Tree: true,
		}, func(t core.CashFlowType) []string {
			parent := ""
			if t.Parent != nil {
				parent = t.Parent.Label()
			} else if t.ParentID != nil {
				parent = refLabel("", *t.ParentID)
			}
			return []string{t.Name, t.Code, parent, day(t.Timestamps)}
		}, func(t core.CashFlowType) map[string]string {
			parent := ""
			if t.ParentID != nil {
				parent = idString(*t.ParentID)
			}
			return map[string]string{"name": t.Name, "code": t.Code, "parentId": parent}
		}),

		kindOf[core.CashFlow, core.CashFlowInput](entityKind{
			Resource: core.ResourceCashFlow,
			Singular: "cash flow",
			Columns:  []string{"Name", "Code", "Department", "Cash flow type", "Created"},
			Fields: []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Required: true},
				{Name: "code", Label: "Code", Kind: fieldText, Required: true, Placeholder: "e.g. CF-DIRECT-SALES"},
				{Name: "deparment_id", Label: "Department", Kind: fieldSelect, Required: true, Source: core.ResourceDepartment},
				{Name: "cash_flow_type_id", Label: "Cash flow type", Kind: fieldSelect, Required: true, Source: core.ResourceCashFlowType},
			},
			Filters: []formField{
				{Name: "deparment_id", Label: "Department", Kind: fieldSelect, Source: core.ResourceDepartment},
				{Name: "cash_flow_type_id", Label: "Cash flow type", Kind: fieldSelect, Source: core.ResourceCashFlowType},
			},
		}, func(cf core.CashFlow) []string {
			dept, typ := "", ""
			if cf.Department != nil {
				dept = cf.Department.Name
			}
			if cf.CashFlowType != nil {
				typ = cf.CashFlowType.Name
			}
			return []string{cf.Name, cf.Code, refLabel(dept, cf.DepartmentID), refLabel(typ, cf.CashFlowTypeID), day(cf.Timestamps)}
		}, func(cf core.CashFlow) map[string]string {
			return map[string]string{
				"name": cf.Name, "code": cf.Code,
				"deparment_id": idString(cf.DepartmentID), "cash_flow_type_id": idString(cf.CashFlowTypeID),
			}
		}),

		kindOf[core.Transaction, core.TransactionInput](entityKind{
			Resource: core.ResourceTransaction,
			Singular: "transaction",
			Columns:  []string{"Description", "Cash flow", "Budget", "Amount", "Day"},
			Fields: []formField{
				{Name: "cash_flow_id", Label: "Cash flow", Kind: fieldSelect, Required: true, Source: core.ResourceCashFlow},
				{Name: "budget_id", Label: "Budget", Kind: fieldSelect, Required: true, Source: core.ResourceBudget},
				{Name: "description", Label: "Description", Kind: fieldTextarea},
				{Name: "amount", Label: "Amount", Kind: fieldAmount, Required: true, Placeholder: "negative for outflows"},
				{Name: "transaction_day", Label: "Day", Kind: fieldDate, Required: true},
			},
			Filters: []formField{
				{Name: "start_date", Label: "From", Kind: fieldDate},
				{Name: "end_date", Label: "To", Kind: fieldDate},
				{Name: "cash_flow_id", Label: "Cash flow", Kind: fieldSelect, Source: core.ResourceCashFlow},
				{Name: "budget_id", Label: "Budget", Kind: fieldSelect, Source: core.ResourceBudget},
			},
			Export: true,
		}, func(tx core.Transaction) []string {
			cf, budget := "", ""
			if tx.CashFlow != nil {
				cf = tx.CashFlow.Name
			}
			if tx.Budget != nil {
				budget = tx.Budget.Name
			}
			dayLabel := ""
			if !tx.TransactionDay.IsZero() {
				dayLabel = tx.TransactionDay.Format("02/01/2006")
			}
			return []string{tx.Description, refLabel(cf, tx.CashFlowID), refLabel(budget, tx.BudgetID), f.Currency(tx.Amount), dayLabel}
		}, func(tx core.Transaction) map[string]string {
			return map[string]string{
				"cash_flow_id": idString(tx.CashFlowID), "budget_id": idString(tx.BudgetID),
				"description": tx.Description, "amount": tx.Amount.String(), "transaction_day": tx.TransactionDay.String(),
			}
		}),
	}

	out := make(map[core.Resource]*entityKind, len(kinds))
	for _, k := range kinds {
		out[k.Resource] = k
	}
	return out
}
