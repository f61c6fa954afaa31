package core

import "fmt"

type resourceMeta struct {
	singular string
	plural   string
	title    string
}

var resources = map[Resource]resourceMeta{
	ResourceDepartment:   {"department", "departments", "Departments"},
	ResourceBudgetType:   {"budgetType", "budgetTypes", "Budget types"},
	ResourceBudget:       {"budget", "budgets", "Budgets"},
	ResourceCashFlowType: {"cashFlowType", "cashFlowTypes", "Cash flow types"},
	ResourceCashFlow:     {"cashFlow", "cashFlows", "Cash flows"},
	ResourceTransaction:  {"transaction", "transactions", "Transactions"},
}

// Resources lists every entity resource in navigation order.
var Resources = []Resource{
	ResourceDepartment,
	ResourceBudgetType,
	ResourceBudget,
	ResourceCashFlowType,
	ResourceCashFlow,
	ResourceTransaction,
}

// ParseResource checks that s names a known resource.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if _, ok := resources[r]; !ok {
		return "", fmt.Errorf("unknown resource %q", s)
	}
	return r, nil
}

// PluralKey is the key of the item array in a list response.
func (r Resource) PluralKey() string { return resources[r].plural }

// SingularKey is the fallback key some list endpoints use instead.
func (r Resource) SingularKey() string { return resources[r].singular }

// Title is the heading used for the resource's page.
func (r Resource) Title() string { return resources[r].title }

func (r Resource) String() string { return string(r) }
