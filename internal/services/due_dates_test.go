package services

import (
	"testing"

	"faturamento/internal/core"
)

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name string
		plan core.Plan
		from core.Date
		want core.Date
	}{
		{"weekly", core.Recurring{Every: core.Weekly}, core.NewDate(2024, 12, 28), core.NewDate(2025, 1, 4)},
		{"biweekly", core.Recurring{Every: core.Biweekly}, core.NewDate(2024, 2, 20), core.NewDate(2024, 3, 5)},
		{"monthly keeps day", core.Recurring{Every: core.Monthly}, core.NewDate(2024, 3, 15), core.NewDate(2024, 4, 15)},
		{"monthly clamps non-leap", core.Recurring{Every: core.Monthly}, core.NewDate(2023, 1, 31), core.NewDate(2023, 2, 28)},
		{"monthly clamps leap", core.Recurring{Every: core.Monthly}, core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29)},
		{"monthly crosses year", core.Recurring{Every: core.Monthly}, core.NewDate(2024, 12, 31), core.NewDate(2025, 1, 31)},
		{"annual", core.Recurring{Every: core.Annual}, core.NewDate(2023, 6, 10), core.NewDate(2024, 6, 10)},
		{"annual leap day", core.Recurring{Every: core.Annual}, core.NewDate(2024, 2, 29), core.NewDate(2025, 2, 28)},
		{"installments step 30 days", core.Installments{Count: 3}, core.NewDate(2024, 1, 31), core.NewDate(2024, 3, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDueDate(tt.plan, tt.from)
			if err != nil {
				t.Fatalf("NextDueDate() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextDueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetDueDateStep_Errors(t *testing.T) {
	if _, err := GetDueDateStep(core.Single{}); err == nil {
		t.Error("single invoices should have no step")
	}
	if _, err := GetDueDateStep(core.Recurring{Every: "daily"}); err == nil {
		t.Error("unknown recurrence should fail")
	}
}
