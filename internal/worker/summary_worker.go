// Package worker keeps monthly summaries and the spreadsheet report in step
// with the ledger. It consumes billing events and runs the scheduled jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	applog "faturamento/internal/log"
	"faturamento/internal/observability"
	"faturamento/internal/sheets"
)

// SummaryRefresher recomputes and stores the summary of one month.
// *services.SummaryService implements it.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context, month, year int) (core.MonthlySummary, error)
}

// SummaryWorker refreshes the summaries named by billing events and exports
// them to the configured report.
type SummaryWorker struct {
	summaries SummaryRefresher
	exporter  sheets.SummaryExporter
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option configures a SummaryWorker.
type Option func(*SummaryWorker)

// WithMetrics records exports and consumed events.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *SummaryWorker) { w.metrics = m }
}

// WithClock replaces time.Now when choosing the recent periods.
func WithClock(now func() time.Time) Option {
	return func(w *SummaryWorker) { w.now = now }
}

// NewSummaryWorker creates a worker. A nil exporter only refreshes.
func NewSummaryWorker(summaries SummaryRefresher, exporter sheets.SummaryExporter, opts ...Option) *SummaryWorker {
	w := &SummaryWorker{summaries: summaries, exporter: exporter, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleEvent refreshes and exports every period of ev. Events without
// periods refresh the recent months. Invalid periods are skipped; any other
// failure is returned so the broker redelivers the event.
func (w *SummaryWorker) HandleEvent(ctx context.Context, ev *amqp.BillingEvent) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker).With(
		applog.FieldEventID, ev.ID,
		applog.FieldEventType, string(ev.Type))

	periods := ev.Periods
	if len(periods) == 0 {
		logger.DebugContext(ctx, "Event carries no periods, refreshing recent months")
		periods = w.recentPeriods()
	}

	var errs []error
	for _, p := range periods {
		if err := w.sync(ctx, p); err != nil {
			if core.IsValidation(err) {
				logger.WarnContext(ctx, "Skipping invalid period", applog.FieldPeriod, p.String(), applog.FieldError, err.Error())
				continue
			}
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	w.metrics.EventConsumed(string(ev.Type), err)
	if err != nil {
		return fmt.Errorf("handle event %s: %w", ev.ID, err)
	}
	logger.InfoContext(ctx, "Billing event handled", "periods", len(periods))
	return nil
}

// RefreshRecent refreshes and exports the current and the previous month.
func (w *SummaryWorker) RefreshRecent(ctx context.Context) error {
	var errs []error
	for _, p := range w.recentPeriods() {
		if err := w.sync(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *SummaryWorker) recentPeriods() []core.Period {
	current := core.PeriodOf(core.DateOf(w.now()))
	return []core.Period{current, current.Previous()}
}

// sync refreshes one period and exports the stored result.
func (w *SummaryWorker) sync(ctx context.Context, p core.Period) error {
	sum, err := w.summaries.RefreshSummary(ctx, p.Month, p.Year)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", p, err)
	}
	if w.exporter == nil {
		return nil
	}

	err = w.exporter.ExportSummary(ctx, sum)
	w.metrics.SummaryExported(err)
	if err != nil {
		slog.ErrorContext(ctx, "Summary export failed",
			applog.FieldComponent, applog.ComponentSheets,
			applog.FieldPeriod, p.String(),
			applog.FieldError, err.Error())
		return fmt.Errorf("export %s: %w", p, err)
	}
	return nil
}
