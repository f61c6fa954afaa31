package core

import "github.com/shopspring/decimal"

// Totals is the headline block of the dashboard overview.
type Totals struct {
	TotalTransactions Count           `json:"totalTransactions"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
}

// DepartmentStat is one row of the per-department breakdown. The keys are
// the aggregate column names the Entity Store emits.
type DepartmentStat struct {
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount Count           `json:"transactionCount"`
	DepartmentID     int64           `json:"CashFlow.Department.id"`
	DepartmentName   string          `json:"CashFlow.Department.name"`
	DepartmentCode   string          `json:"CashFlow.Department.code_department"`
}

// BudgetTypeStat is one row of the per-budget-type breakdown.
type BudgetTypeStat struct {
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount Count           `json:"transactionCount"`
	BudgetTypeID     int64           `json:"Budget.BudgetType.id"`
	BudgetTypeName   string          `json:"Budget.BudgetType.name"`
}

// DashboardOverview is the payload of /api/dashboard/overview.
type DashboardOverview struct {
	Overview        Totals           `json:"overview"`
	DepartmentStats []DepartmentStat `json:"departmentStats"`
	BudgetTypeStats []BudgetTypeStat `json:"budgetTypeStats"`
}

// TrendPoint is one period of /api/dashboard/trends. Points arrive in
// chronological order and are never re-sorted.
type TrendPoint struct {
	Period           string          `json:"period"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount Count           `json:"transactionCount"`
}

// Trends is the payload of /api/dashboard/trends.
type Trends struct {
	Trends []TrendPoint `json:"trends"`
	Period string       `json:"period"`
}

// StatRow is a loosely typed aggregate row from the stats endpoints whose
// shape the Entity Store does not pin down.
type StatRow map[string]any
