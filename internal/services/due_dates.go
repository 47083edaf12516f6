// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for computing the due date of the
// next invoice in a chain. Each recurrence has its own step; installment
// chains always advance by a fixed number of days.

package services

import (
	"fmt"

	"faturamento/internal/core"
)

// installmentStepDays is the distance between consecutive installments.
const installmentStepDays = 30

// DueDateStep is the strategy interface for advancing a due date.
type DueDateStep interface {
	// Next returns the due date of the invoice following one due on from.
	Next(from core.Date) core.Date
}

// DayStep advances by a fixed number of days.
type DayStep int

func (s DayStep) Next(from core.Date) core.Date {
	return from.AddDays(int(s))
}

// MonthStep advances by whole months, clamping to the last day of shorter months.
type MonthStep int

func (s MonthStep) Next(from core.Date) core.Date {
	return from.AddMonthsClamped(int(s))
}

// recurrenceSteps maps recurrences to their date strategies.
var recurrenceSteps = map[core.Frequency]DueDateStep{
	core.Weekly:   DayStep(7),
	core.Biweekly: DayStep(14),
	core.Monthly:  MonthStep(1),
	core.Annual:   MonthStep(12),
}

// GetDueDateStep returns the strategy for a billing plan.
// Single invoices have no successor and return an error.
func GetDueDateStep(plan core.Plan) (DueDateStep, error) {
	switch p := plan.(type) {
	case core.Recurring:
		step, ok := recurrenceSteps[p.Every]
		if !ok {
			return nil, fmt.Errorf("unknown recurrence: %s", p.Every)
		}
		return step, nil
	case core.Installments:
		return DayStep(installmentStepDays), nil
	default:
		return nil, fmt.Errorf("plan %v has no follow-up invoices", plan)
	}
}

// NextDueDate returns the due date following from under plan.
func NextDueDate(plan core.Plan, from core.Date) (core.Date, error) {
	step, err := GetDueDateStep(plan)
	if err != nil {
		return core.Date{}, err
	}
	return step.Next(from), nil
}
