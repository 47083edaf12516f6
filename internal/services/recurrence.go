package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

// RecurrenceEngine generates the next invoice of a recurring or installment
// chain when an invoice is paid.
type RecurrenceEngine struct {
	store storage.Store
	options
}

func NewRecurrenceEngine(store storage.Store, opts ...Option) *RecurrenceEngine {
	return &RecurrenceEngine{store: store, options: newOptions(opts)}
}

// OnInvoicePaid creates the successor of inv and returns it. It returns nil
// when inv is not a paid chain member, when the chain is complete, or when the
// successor already exists.
func (e *RecurrenceEngine) OnInvoicePaid(ctx context.Context, inv core.Invoice) (*core.Invoice, error) {
	if inv.Status != core.StatusPaid {
		return nil, nil
	}
	if _, single := inv.Plan.(core.Single); single || inv.Plan == nil {
		return nil, nil
	}

	index := inv.Installment
	if index < 1 {
		index = 1
	}
	if p, ok := inv.Plan.(core.Installments); ok && (p.Count == 0 || index >= p.Count) {
		slog.DebugContext(ctx, "Installment chain complete",
			"invoice_id", inv.ID,
			"installment", index,
			"count", p.Count)
		return nil, nil
	}

	due, err := NextDueDate(inv.Plan, inv.DueDate)
	if err != nil {
		return nil, fmt.Errorf("next due date for invoice %d: %w", inv.ID, err)
	}

	parentID := inv.ID
	successor := core.Invoice{
		ClientID:    inv.ClientID,
		ProductID:   inv.ProductID,
		Description: inv.Description,
		Value:       inv.Value,
		DueDate:     due,
		Status:      core.StatusPending,
		Plan:        inv.Plan,
		Installment: index + 1,
		ParentID:    &parentID,
	}

	var created *core.Invoice
	err = e.store.Atomic(ctx, func(tx storage.Store) error {
		_, err := tx.FindSuccessor(ctx, core.SuccessorKey{
			ClientID:    inv.ClientID,
			ParentID:    inv.ID,
			Description: inv.Description,
			Value:       inv.Value,
			DueDate:     due,
		})
		if err == nil {
			return nil
		}
		if !core.IsNotFound(err) {
			return err
		}

		saved, err := tx.CreateInvoice(ctx, successor)
		if err != nil {
			return err
		}
		created = &saved
		return nil
	})
	if errors.Is(err, storage.ErrDuplicateSuccessor) {
		slog.InfoContext(ctx, "Successor already generated", "parent_id", inv.ID, "due_date", due.String())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generate successor of invoice %d: %w", inv.ID, err)
	}
	if created == nil {
		slog.InfoContext(ctx, "Successor already generated", "parent_id", inv.ID, "due_date", due.String())
		return nil, nil
	}

	e.metrics.SuccessorCreated()
	slog.InfoContext(ctx, "Generated follow-up invoice",
		"parent_id", inv.ID,
		"invoice_id", created.ID,
		"installment", created.Installment,
		"due_date", created.DueDate.String())

	e.publish(ctx, amqp.NewBillingEvent(amqp.InvoiceSuccessorCreated, created.ID, created.ClientID,
		core.PeriodOf(created.DueDate)))

	return created, nil
}
