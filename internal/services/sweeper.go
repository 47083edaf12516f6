package services

import (
	"context"
	"fmt"
	"log/slog"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

// Sweeper moves pending invoices past their due date to overdue. It is the
// only component that enters the overdue status.
type Sweeper struct {
	store storage.Store
	options
}

func NewSweeper(store storage.Store, opts ...Option) *Sweeper {
	return &Sweeper{store: store, options: newOptions(opts)}
}

// SweepOverdue marks every pending invoice due before asOf as overdue in one
// transaction and returns how many changed. Running it again is a no-op.
func (s *Sweeper) SweepOverdue(ctx context.Context, asOf core.Date) (int, error) {
	if asOf.IsEmpty() {
		return 0, core.NewValidationError("as_of", "required")
	}

	var changed []core.Invoice
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		changed, err = tx.MarkOverdue(ctx, asOf)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sweep overdue as of %s: %w", asOf, err)
	}

	n := len(changed)
	s.metrics.OverdueSwept(n)
	slog.InfoContext(ctx, "Overdue sweep finished", "as_of", asOf.String(), "marked", n)

	if n > 0 {
		s.publish(ctx, amqp.NewBillingEvent(amqp.InvoicesSwept, 0, 0, periodsOf(changed...)...))
	}
	return n, nil
}

// SweepOverdueToday sweeps with the clock's current date.
func (s *Sweeper) SweepOverdueToday(ctx context.Context) (int, error) {
	return s.SweepOverdue(ctx, s.today())
}

// Today is the date SweepOverdueToday uses.
func (s *Sweeper) Today() core.Date {
	return s.today()
}
