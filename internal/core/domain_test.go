package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-01-01", "2025-01-01", true},
		{"2024-02-29T10:11:12Z", "2024-02-29", true},
		{" 2025-12-31 ", "2025-12-31", true},
		{"", "", false},
		{"31/12/2025", "", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && (err != nil || d.String() != tc.want) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, d, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestValidateRequiredFields(t *testing.T) {
	err := Validate(&BudgetInput{Name: "Ops"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidation(err) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	msg := err.Error()
	for _, field := range []string{"code", "budget_type_id"} {
		if !strings.Contains(msg, field) {
			t.Errorf("message %q should name %s", msg, field)
		}
	}
	if strings.Contains(msg, "name") {
		t.Errorf("message %q should not name a filled field", msg)
	}

	if err := Validate(&BudgetInput{Name: "Ops", Code: "B1", BudgetTypeID: 3}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateNormalizesTransaction(t *testing.T) {
	in := &TransactionInput{
		CashFlowID:     1,
		BudgetID:       2,
		Description:    "  rent ",
		Amount:         "1500000,50",
		TransactionDay: "2024-03-05",
	}
	if err := Validate(in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Amount != "1500000.5" || in.Description != "rent" {
		t.Fatalf("not normalized: %+v", in)
	}

	bad := &TransactionInput{CashFlowID: 1, BudgetID: 2, Amount: "abc", TransactionDay: "2024-03-05"}
	err := Validate(bad)
	if !IsValidation(err) || !strings.Contains(err.Error(), "amount") {
		t.Fatalf("expected amount validation error, got %v", err)
	}
}

func TestLabel(t *testing.T) {
	if got := (CashFlowType{Code: "OP", Name: "Operating"}).Label(); got != "OP - Operating" {
		t.Fatalf("label = %q", got)
	}
	if got := (Budget{Code: "B-01", Name: "Capex"}).Label(); got != "B-01 - Capex" {
		t.Fatalf("label = %q", got)
	}
	if got := (Department{Name: "Sales"}).Label(); got != "Sales" {
		t.Fatalf("label without code = %q", got)
	}
}
