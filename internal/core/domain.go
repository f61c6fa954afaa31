package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Resource names as used in Entity Store paths (/api/<resource>).
const (
	ResourceDepartment   Resource = "department"
	ResourceBudgetType   Resource = "budget-type"
	ResourceBudget       Resource = "budget"
	ResourceCashFlowType Resource = "cash-flow-type"
	ResourceCashFlow     Resource = "cash-flow"
	ResourceTransaction  Resource = "transaction"
)

type (
	Resource string

	// Date is a calendar day. It accepts both "2006-01-02" and RFC 3339
	// timestamps on input and always emits "2006-01-02".
	Date struct {
		time.Time
	}

	Timestamps struct {
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Department struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		CodeDepartment string `json:"code_department"`
		CompositeCode  string `json:"composite_code"`
		Address        string `json:"address"`
		AddressCode    string `json:"address_code"`
		Timestamps
	}

	BudgetType struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Timestamps
	}

	Budget struct {
		ID           int64       `json:"id"`
		Name         string      `json:"name"`
		Code         string      `json:"code"`
		BudgetTypeID int64       `json:"budget_type_id"`
		BudgetType   *BudgetType `json:"BudgetType,omitempty"`
		Timestamps
	}

	CashFlowType struct {
		ID       int64         `json:"id"`
		Name     string        `json:"name"`
		Code     string        `json:"code"`
		ParentID *int64        `json:"parentId,omitempty"`
		Parent   *CashFlowType `json:"Parent,omitempty"`
		Timestamps
	}

	CashFlow struct {
		ID             int64         `json:"id"`
		Name           string        `json:"name"`
		Code           string        `json:"code"`
		DepartmentID   int64         `json:"deparment_id"` // wire name is misspelled upstream
		CashFlowTypeID int64         `json:"cash_flow_type_id"`
		Department     *Department   `json:"Department,omitempty"`
		CashFlowType   *CashFlowType `json:"CashFlowType,omitempty"`
		Timestamps
	}

	Transaction struct {
		ID             int64           `json:"id"`
		CashFlowID     int64           `json:"cash_flow_id"`
		BudgetID       int64           `json:"budget_id"`
		Description    string          `json:"description"`
		Amount         decimal.Decimal `json:"amount"`
		TransactionDay Date            `json:"transaction_day"`
		CashFlow       *CashFlow       `json:"CashFlow,omitempty"`
		Budget         *Budget         `json:"Budget,omitempty"`
		Timestamps
	}

	// User is the authenticated account returned by the login endpoint.
	User struct {
		ID       int64  `json:"id"`
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HasParent reports whether the type declares a parent reference.
func (c CashFlowType) HasParent() bool {
	return c.ParentID != nil
}

// Label is "CODE - Name", the way option lists show entities.
func (c CashFlowType) Label() string { return label(c.Code, c.Name) }
func (c CashFlow) Label() string     { return label(c.Code, c.Name) }
func (b Budget) Label() string       { return label(b.Code, b.Name) }
func (d Department) Label() string   { return label(d.CodeDepartment, d.Name) }

func label(code, name string) string {
	if code == "" {
		return name
	}
	return code + " - " + name
}
