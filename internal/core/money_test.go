package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1500000", "1500000", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.001", "0.001", true},
		{" 2.50 ", "2.5", true},
		{"3.25 ₫", "3.25", true},
		{"-1", "-1", true},
		{"-250000,5", "-250000.5", true},
		{"+1", "", false},
		{"-0", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCountAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]int64{
		`"12"`:   12,
		`12`:     12,
		`"12.0"`: 12,
		`null`:   0,
		`""`:     0,
	}
	for in, want := range cases {
		var c Count
		if err := json.Unmarshal([]byte(in), &c); err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if c.Int64() != want {
			t.Fatalf("%s: expected %d, got %d", in, want, c)
		}
	}

	var bad Count
	if err := json.Unmarshal([]byte(`"twelve"`), &bad); err == nil {
		t.Fatal("expected error for non-numeric count")
	}
}

func TestTransactionAmountStaysDecimal(t *testing.T) {
	var tx Transaction
	body := `{"id":7,"cash_flow_id":1,"budget_id":2,"amount":"1234567.89","transaction_day":"2024-02-03T00:00:00.000Z"}`
	if err := json.Unmarshal([]byte(body), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Amount.String() != "1234567.89" {
		t.Fatalf("amount = %s", tx.Amount)
	}
	if tx.TransactionDay.String() != "2024-02-03" {
		t.Fatalf("day = %s", tx.TransactionDay)
	}

	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !json.Valid(out) {
		t.Fatalf("invalid json %s", out)
	}
	var back map[string]any
	_ = json.Unmarshal(out, &back)
	if back["amount"] != "1234567.89" {
		t.Fatalf("amount should be re-serialized as a string, got %#v", back["amount"])
	}
}
