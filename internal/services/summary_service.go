package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"faturamento/internal/cache"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

const defaultLatestSummaries = 3

// SummaryService computes and persists monthly totals by status.
// RefreshSummary is the only writer of persisted summaries.
type SummaryService struct {
	store storage.Store
	cache cache.Cache[core.MonthlySummary]
	group singleflight.Group
	options
}

// NewSummaryService creates the service. summaries may be nil to disable caching.
func NewSummaryService(store storage.Store, summaries cache.Cache[core.MonthlySummary], opts ...Option) *SummaryService {
	return &SummaryService{
		store:   store,
		cache:   summaries,
		options: newOptions(opts),
	}
}

func summaryKey(p core.Period) string {
	return p.String()
}

// ComputeSummary sums the invoices due in the period without writing anything.
// On failure the totals are zero and Error describes the problem.
func (s *SummaryService) ComputeSummary(ctx context.Context, month, year int) core.MonthlySummary {
	p := core.Period{Month: month, Year: year}
	sum, err := s.compute(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute monthly summary", "period", p.String(), "error", err)
		degraded := core.EmptySummary(p)
		degraded.Error = err.Error()
		return degraded
	}
	return sum
}

// compute shares one in-flight read per period between concurrent callers.
// The shared read is detached from any single caller's cancellation.
func (s *SummaryService) compute(ctx context.Context, p core.Period) (core.MonthlySummary, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	v, err, _ := s.group.Do(summaryKey(p), func() (any, error) {
		return s.totals(context.WithoutCancel(ctx), p)
	})
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("compute summary %s: %w", p, err)
	}
	return v.(core.MonthlySummary), nil
}

// totals reads the period's sums straight from the store.
func (s *SummaryService) totals(ctx context.Context, p core.Period) (core.MonthlySummary, error) {
	from, until := core.MonthRange(p.Month, p.Year)
	totals, err := s.store.TotalsByStatus(ctx, core.InvoiceFilter{DueFrom: from, DueUntil: until})
	if err != nil {
		return core.MonthlySummary{}, err
	}
	sum := core.EmptySummary(p)
	for status, value := range totals {
		sum.Add(status, value)
	}
	return sum, nil
}

// RefreshSummary recomputes and persists the summary for the period.
// It always reads the store itself and never joins an in-flight compute,
// so the stored totals are at least as new as the call.
// A failed computation is returned as an error and nothing is written.
func (s *SummaryService) RefreshSummary(ctx context.Context, month, year int) (core.MonthlySummary, error) {
	p := core.Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	sum, err := s.totals(ctx, p)
	if err != nil {
		err = fmt.Errorf("compute summary %s: %w", p, err)
		s.metrics.SummaryRefreshed(err)
		return core.MonthlySummary{}, err
	}

	saved, err := s.store.UpsertSummary(ctx, sum)
	s.metrics.SummaryRefreshed(err)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("persist summary %s: %w", p, err)
	}

	s.invalidate(ctx, p)
	slog.InfoContext(ctx, "Monthly summary refreshed",
		"period", p.String(),
		"received", saved.Received.StringFixed(core.MoneyPlaces),
		"pending", saved.Pending.StringFixed(core.MoneyPlaces),
		"overdue", saved.Overdue.StringFixed(core.MoneyPlaces),
		"cancelled", saved.Cancelled.StringFixed(core.MoneyPlaces))
	return saved, nil
}

// GetSummary returns the persisted summary for the period, or a freshly
// computed one with Persisted=false when none has been stored yet.
func (s *SummaryService) GetSummary(ctx context.Context, month, year int) (core.MonthlySummary, error) {
	p := core.Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	if cached, ok := s.cached(ctx, p); ok {
		return cached, nil
	}

	stored, err := s.store.GetSummary(ctx, p)
	switch {
	case err == nil:
		s.remember(ctx, stored)
		return stored, nil
	case core.IsNotFound(err):
		return s.ComputeSummary(ctx, month, year), nil
	default:
		return core.MonthlySummary{}, fmt.Errorf("get summary %s: %w", p, err)
	}
}

// LatestSummaries returns up to n persisted summaries, newest period first.
func (s *SummaryService) LatestSummaries(ctx context.Context, n int) ([]core.MonthlySummary, error) {
	if n <= 0 {
		return nil, core.NewValidationError("limit", "must be positive")
	}
	return s.store.LatestSummaries(ctx, n)
}

// SummaryLookup answers GetMonthlySummary. Single is set when a period was
// asked for; otherwise Latest holds the newest persisted summaries.
type SummaryLookup struct {
	Single *core.MonthlySummary
	Latest []core.MonthlySummary
}

// GetMonthlySummary returns one summary when both month and year are given
// and the latest persisted summaries when neither is.
func (s *SummaryService) GetMonthlySummary(ctx context.Context, month, year *int) (SummaryLookup, error) {
	switch {
	case month != nil && year != nil:
		sum, err := s.GetSummary(ctx, *month, *year)
		if err != nil {
			return SummaryLookup{}, err
		}
		return SummaryLookup{Single: &sum}, nil
	case month == nil && year == nil:
		latest, err := s.LatestSummaries(ctx, defaultLatestSummaries)
		if err != nil {
			return SummaryLookup{}, err
		}
		return SummaryLookup{Latest: latest}, nil
	case month == nil:
		return SummaryLookup{}, core.NewValidationError("month", "required when year is given")
	default:
		return SummaryLookup{}, core.NewValidationError("year", "required when month is given")
	}
}

// RefreshPeriods refreshes every period and joins the failures.
func (s *SummaryService) RefreshPeriods(ctx context.Context, periods []core.Period) ([]core.MonthlySummary, error) {
	var (
		out  []core.MonthlySummary
		errs []error
	)
	for _, p := range periods {
		sum, err := s.RefreshSummary(ctx, p.Month, p.Year)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sum)
	}
	return out, errors.Join(errs...)
}

func (s *SummaryService) cached(ctx context.Context, p core.Period) (core.MonthlySummary, bool) {
	if s.cache == nil {
		return core.MonthlySummary{}, false
	}
	sum, err := s.cache.Get(ctx, summaryKey(p))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "Summary cache read failed", "backend", s.cache.Name(), "error", err)
		}
		s.metrics.CacheLookup(s.cache.Name(), false)
		return core.MonthlySummary{}, false
	}
	s.metrics.CacheLookup(s.cache.Name(), true)
	return sum, true
}

func (s *SummaryService) remember(ctx context.Context, sum core.MonthlySummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, summaryKey(sum.Period()), sum); err != nil {
		slog.WarnContext(ctx, "Summary cache write failed", "backend", s.cache.Name(), "error", err)
	}
}

func (s *SummaryService) invalidate(ctx context.Context, p core.Period) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryKey(p)); err != nil {
		slog.WarnContext(ctx, "Summary cache invalidation failed", "backend", s.cache.Name(), "error", err)
	}
}
