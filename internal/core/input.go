package core

import "strings"

// Create/update payloads. The form tags match the console's HTML inputs,
// the json tags match the Entity Store's wire names.
type (
	DepartmentInput struct {
		Name           string `form:"name" json:"name" validate:"required"`
		CodeDepartment string `form:"code_department" json:"code_department" validate:"required"`
		CompositeCode  string `form:"composite_code" json:"composite_code"`
		Address        string `form:"address" json:"address"`
		AddressCode    string `form:"address_code" json:"address_code"`
	}

	BudgetTypeInput struct {
		Name string `form:"name" json:"name" validate:"required"`
	}

	BudgetInput struct {
		Name         string `form:"name" json:"name" validate:"required"`
		Code         string `form:"code" json:"code" validate:"required"`
		BudgetTypeID int64  `form:"budget_type_id" json:"budget_type_id" validate:"required"`
	}

	// CashFlowTypeInput sends parentId as null when no parent is chosen so
	// that an update can detach a node.
	CashFlowTypeInput struct {
		Name     string `form:"name" json:"name" validate:"required"`
		Code     string `form:"code" json:"code" validate:"required"`
		ParentID *int64 `form:"parentId" json:"parentId"`
	}

	CashFlowInput struct {
		Name           string `form:"name" json:"name" validate:"required"`
		Code           string `form:"code" json:"code" validate:"required"`
		DepartmentID   int64  `form:"deparment_id" json:"deparment_id" validate:"required"`
		CashFlowTypeID int64  `form:"cash_flow_type_id" json:"cash_flow_type_id" validate:"required"`
	}

	TransactionInput struct {
		CashFlowID     int64  `form:"cash_flow_id" json:"cash_flow_id" validate:"required"`
		BudgetID       int64  `form:"budget_id" json:"budget_id" validate:"required"`
		Description    string `form:"description" json:"description" validate:"max=500"`
		Amount         string `form:"amount" json:"amount" validate:"required"`
		TransactionDay string `form:"transaction_day" json:"transaction_day" validate:"required"`
	}

	LoginInput struct {
		Email    string `form:"email" json:"email" validate:"required,email"`
		Password string `form:"password" json:"password" validate:"required"`
	}

	RegisterInput struct {
		FullName string `form:"fullName" json:"fullName" validate:"required"`
		Email    string `form:"email" json:"email" validate:"required,email"`
		Password string `form:"password" json:"password" validate:"required,min=6"`
		Role     string `form:"role" json:"role"`
	}
)

// Normalize canonicalizes the amount and day so the Entity Store receives
// a plain decimal string and a YYYY-MM-DD date.
func (t *TransactionInput) Normalize() error {
	amount, err := ParseAmount(t.Amount)
	if err != nil {
		return &ValidationError{Fields: []string{"amount"}, Reason: "amount must be a non-zero number"}
	}
	day, err := ParseDate(t.TransactionDay)
	if err != nil {
		return &ValidationError{Fields: []string{"transaction_day"}, Reason: "transaction day must be a date"}
	}
	t.Amount = amount.String()
	t.TransactionDay = day.String()
	t.Description = strings.TrimSpace(t.Description)
	return nil
}

func (r *RegisterInput) Normalize() error {
	if strings.TrimSpace(r.Role) == "" {
		r.Role = "user"
	}
	return nil
}
