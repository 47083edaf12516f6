package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

// NewInvoice is the input of CreateInvoice. Zero Status, Plan and Installment
// default to pending, Single and 1. ParentID links the invoice into an
// existing chain of the same client.
type NewInvoice struct {
	ClientID    int64
	ProductID   *int64
	ParentID    *int64
	Description string
	Value       decimal.Decimal
	DueDate     core.Date
	PaymentDate *core.Date
	Status      core.Status
	Plan        core.Plan
	Installment int
}

// InvoicePatch carries the fields of a partial update. Nil fields keep their value.
type InvoicePatch struct {
	Description *string
	Value       *decimal.Decimal
	DueDate     *core.Date
	ProductID   *int64
}

// StatusChange is the outcome of SetInvoiceStatus. Warning is set when the
// status was saved but the follow-up invoice could not be generated.
type StatusChange struct {
	Invoice   core.Invoice  `json:"invoice"`
	Successor *core.Invoice `json:"successor,omitempty"`
	Warning   string        `json:"warning,omitempty"`
}

// InvoiceService orchestrates invoice writes, chain generation and events.
type InvoiceService struct {
	store      storage.Store
	recurrence *RecurrenceEngine
	options
}

func NewInvoiceService(store storage.Store, recurrence *RecurrenceEngine, opts ...Option) *InvoiceService {
	return &InvoiceService{
		store:      store,
		recurrence: recurrence,
		options:    newOptions(opts),
	}
}

// CreateInvoice validates and saves an invoice in one transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in NewInvoice) (core.Invoice, error) {
	inv := core.Invoice{
		ClientID:    in.ClientID,
		ProductID:   in.ProductID,
		ParentID:    in.ParentID,
		Description: in.Description,
		Value:       core.RoundMoney(in.Value),
		DueDate:     in.DueDate,
		PaymentDate: in.PaymentDate,
		Status:      in.Status,
		Plan:        in.Plan,
		Installment: in.Installment,
	}
	if inv.Status == "" {
		inv.Status = core.StatusPending
	}
	if inv.Plan == nil {
		inv.Plan = core.Single{}
	}
	if inv.Installment == 0 {
		inv.Installment = 1
	}
	if inv.Status == core.StatusPaid && inv.PaymentDate == nil {
		today := s.today()
		inv.PaymentDate = &today
	}
	if inv.Status != core.StatusPaid {
		inv.PaymentDate = nil
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	var created core.Invoice
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		if _, err := tx.GetClient(ctx, inv.ClientID); err != nil {
			return err
		}
		if err := checkProductOwner(ctx, tx, inv.ProductID, inv.ClientID); err != nil {
			return err
		}
		if err := checkParent(ctx, tx, inv.ParentID, inv.ClientID); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateInvoice(ctx, inv)
		return err
	})
	if errors.Is(err, storage.ErrDuplicateSuccessor) {
		return core.Invoice{}, core.NewValidationError("due_date", "the parent invoice already has a follow-up due on that date")
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	s.metrics.InvoiceCreated()
	s.publish(ctx, amqp.NewBillingEvent(amqp.InvoiceCreated, created.ID, created.ClientID, periodsOf(created)...))
	return created, nil
}

func checkProductOwner(ctx context.Context, tx storage.Store, productID *int64, clientID int64) error {
	if productID == nil {
		return nil
	}
	p, err := tx.GetProduct(ctx, *productID)
	if err != nil {
		return err
	}
	if p.ClientID != clientID {
		return core.NewValidationError("product_id", fmt.Sprintf("product %d belongs to another client", p.ID))
	}
	return nil
}

func checkParent(ctx context.Context, tx storage.Store, parentID *int64, clientID int64) error {
	if parentID == nil {
		return nil
	}
	parent, err := tx.GetInvoice(ctx, *parentID)
	if err != nil {
		return err
	}
	if parent.ClientID != clientID {
		return core.NewValidationError("parent_id", fmt.Sprintf("invoice %d belongs to another client", parent.ID))
	}
	return nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, filter core.InvoiceFilter) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx, filter)
}

// UpdateInvoice applies a partial update. Status changes go through SetInvoiceStatus.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id int64, patch InvoicePatch) (core.Invoice, error) {
	var before, after core.Invoice
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		if before, err = tx.GetInvoice(ctx, id); err != nil {
			return err
		}
		inv := before
		if patch.Description != nil {
			inv.Description = *patch.Description
		}
		if patch.Value != nil {
			inv.Value = core.RoundMoney(*patch.Value)
		}
		if patch.DueDate != nil {
			inv.DueDate = *patch.DueDate
		}
		if patch.ProductID != nil {
			if err := checkProductOwner(ctx, tx, patch.ProductID, inv.ClientID); err != nil {
				return err
			}
			inv.ProductID = patch.ProductID
		}
		if err := inv.Validate(); err != nil {
			return err
		}
		after, err = tx.UpdateInvoice(ctx, inv)
		return err
	})
	if errors.Is(err, storage.ErrDuplicateSuccessor) {
		return core.Invoice{}, core.NewValidationError("due_date", "another invoice of this chain is already due on that date")
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice %d: %w", id, err)
	}

	s.publish(ctx, amqp.NewBillingEvent(amqp.InvoiceUpdated, after.ID, after.ClientID, periodsOf(before, after)...))
	return after, nil
}

// SetInvoiceStatus applies a user driven status change. Entering paid stamps
// the payment date and, after the change is committed, generates the next
// invoice of the chain. Leaving paid clears the payment date.
func (s *InvoiceService) SetInvoiceStatus(ctx context.Context, id int64, status core.Status) (StatusChange, error) {
	if status == core.StatusOverdue {
		return StatusChange{}, core.NewValidationError("status", "invoices become overdue only through the overdue sweep")
	}

	var (
		previous core.Status
		updated  core.Invoice
		changed  bool
	)
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		previous = inv.Status
		if inv.Status == status {
			updated = inv
			return nil
		}
		if !core.CanTransition(inv.Status, status) {
			return core.NewValidationError("status",
				fmt.Sprintf("cannot change status from %s to %s", inv.Status, status))
		}

		switch {
		case status == core.StatusPaid:
			if inv.PaymentDate == nil || inv.PaymentDate.IsEmpty() {
				today := s.today()
				inv.PaymentDate = &today
			}
		case inv.Status == core.StatusPaid:
			inv.PaymentDate = nil
		}
		inv.Status = status

		if updated, err = tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return StatusChange{}, fmt.Errorf("set status of invoice %d: %w", id, err)
	}

	result := StatusChange{Invoice: updated}
	if !changed {
		return result, nil
	}

	s.metrics.StatusChanged(string(previous), string(status))
	slog.InfoContext(ctx, "Invoice status changed",
		"invoice_id", id,
		"from", previous,
		"to", status)
	s.publish(ctx, amqp.NewBillingEvent(amqp.InvoiceStatusChanged, updated.ID, updated.ClientID, periodsOf(updated)...))

	if status == core.StatusPaid && s.recurrence != nil {
		successor, err := s.recurrence.OnInvoicePaid(ctx, updated)
		if err != nil {
			s.metrics.SuccessorFailed()
			slog.WarnContext(ctx, "Payment saved but follow-up invoice was not generated",
				"invoice_id", id,
				"error", err)
			result.Warning = fmt.Sprintf("payment recorded, but the next invoice could not be generated: %v", err)
		}
		result.Successor = successor
	}

	return result, nil
}

func (s *InvoiceService) DeleteInvoice(ctx context.Context, id int64) error {
	var inv core.Invoice
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		if inv, err = tx.GetInvoice(ctx, id); err != nil {
			return err
		}
		return tx.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}

	s.publish(ctx, amqp.NewBillingEvent(amqp.InvoiceDeleted, inv.ID, inv.ClientID, periodsOf(inv)...))
	return nil
}
