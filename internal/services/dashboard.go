package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"faturamento/internal/core"
	"faturamento/internal/storage"
)

const latestInvoicesOnDashboard = 10

// DashboardService assembles the headline numbers of the ledger.
type DashboardService struct {
	store storage.Store
	options
}

func NewDashboardService(store storage.Store, opts ...Option) *DashboardService {
	return &DashboardService{store: store, options: newOptions(opts)}
}

// DashboardStats returns the totals by status and the latest invoices.
// Overdue is the pending value past its due date, whether or not the sweep has run.
func (s *DashboardService) DashboardStats(ctx context.Context) (core.DashboardStats, error) {
	var (
		totals  map[core.Status]decimal.Decimal
		pastDue map[core.Status]decimal.Decimal
		latest  []core.InvoiceWithClient
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.store.TotalsByStatus(gctx, core.InvoiceFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		pastDue, err = s.store.TotalsByStatus(gctx, core.InvoiceFilter{
			Status:    core.StatusPending,
			DueBefore: s.today(),
		})
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = s.store.LatestInvoices(gctx, latestInvoicesOnDashboard)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	return core.DashboardStats{
		ToReceive:      totals[core.StatusPending],
		Overdue:        pastDue[core.StatusPending],
		Received:       totals[core.StatusPaid],
		Cancelled:      totals[core.StatusCancelled],
		LatestInvoices: latest,
	}, nil
}
