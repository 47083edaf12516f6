package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validInvoice() Invoice {
	return Invoice{
		ClientID:    1,
		Description: "Hosting",
		Value:       decimal.RequireFromString("120.00"),
		DueDate:     NewDate(2025, 1, 31),
		Status:      StatusPending,
		Plan:        Single{},
		Installment: 1,
	}
}

func TestInvoiceValidate(t *testing.T) {
	if err := validInvoice().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*Invoice)
		field string
	}{
		{"missing client", func(i *Invoice) { i.ClientID = 0 }, "client_id"},
		{"blank description", func(i *Invoice) { i.Description = "  " }, "description"},
		{"long description", func(i *Invoice) { i.Description = strings.Repeat("x", 201) }, "description"},
		{"negative value", func(i *Invoice) { i.Value = decimal.NewFromInt(-1) }, "value"},
		{"zero due date", func(i *Invoice) { i.DueDate = Date{} }, "due_date"},
		{"unknown status", func(i *Invoice) { i.Status = "lost" }, "status"},
		{"index zero", func(i *Invoice) { i.Installment = 0 }, "installment"},
		{"nil plan", func(i *Invoice) { i.Plan = nil }, "kind"},
		{"bad recurrence", func(i *Invoice) { i.Plan = Recurring{Every: "daily"} }, "recurrence"},
		{"index past count", func(i *Invoice) { i.Plan = Installments{Count: 2}; i.Installment = 3 }, "installment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := validInvoice()
			tc.mut(&inv)
			err := inv.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestZeroValueInvoiceIsValid(t *testing.T) {
	inv := validInvoice()
	inv.Value = decimal.Zero
	if err := inv.Validate(); err != nil {
		t.Fatalf("zero value should be allowed: %v", err)
	}
}

func TestClientValidate(t *testing.T) {
	if err := (Client{Name: "ACME"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Client{Name: ""}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Client{Name: "ACME", Email: "nope"}).Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
}

func TestProductAndNoteValidate(t *testing.T) {
	if err := (Product{Name: "Support", UnitValue: decimal.NewFromInt(10)}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Product{Name: "Support", UnitValue: decimal.NewFromInt(-10)}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (Note{Title: ""}).Validate(); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestPeriod(t *testing.T) {
	if err := (Period{Month: 13, Year: 2025}).Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if got := (Period{Month: 1, Year: 2025}).Previous(); got != (Period{Month: 12, Year: 2024}) {
		t.Fatalf("Previous() = %v", got)
	}
	if got := PeriodOf(NewDate(2024, 2, 29)); got != (Period{Month: 2, Year: 2024}) {
		t.Fatalf("PeriodOf() = %v", got)
	}
	if got := (Period{Month: 3, Year: 2025}).String(); got != "2025-03" {
		t.Fatalf("String() = %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("invoice", 7)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "invoice 7: not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestInvoiceJSONFlattensPlan(t *testing.T) {
	inv := validInvoice()
	inv.Plan = Recurring{Every: Monthly}
	data, err := json.Marshal(InvoiceWithClient{Invoice: inv, ClientName: "ACME"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["kind"] != "recurring" || out["recurrence"] != "monthly" {
		t.Fatalf("plan not flattened: %s", data)
	}
	if out["due_date"] != "2025-01-31" || out["payment_date"] != nil {
		t.Fatalf("dates not encoded as YYYY-MM-DD: %s", data)
	}
	if out["client_name"] != "ACME" {
		t.Fatalf("client name missing: %s", data)
	}
}
