package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/observability"
	"faturamento/internal/sheets/memory"
)

var testNow = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

// fakeRefresher returns a summary whose Received is the month number.
type fakeRefresher struct {
	mu        sync.Mutex
	refreshed []core.Period
	fail      map[core.Period]error
}

func (f *fakeRefresher) RefreshSummary(_ context.Context, month, year int) (core.MonthlySummary, error) {
	p := core.Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[p]; err != nil {
		return core.MonthlySummary{}, err
	}
	f.refreshed = append(f.refreshed, p)
	s := core.EmptySummary(p)
	s.Received = decimal.NewFromInt(int64(month))
	s.Persisted = true
	return s, nil
}

type failingExporter struct{ calls int }

func (f *failingExporter) ExportSummary(context.Context, core.MonthlySummary) error {
	f.calls++
	return errors.New("quota exceeded")
}

func TestHandleEventRefreshesAndExportsEachPeriod(t *testing.T) {
	refresher := &fakeRefresher{}
	exporter := memory.New()
	w := NewSummaryWorker(refresher, exporter, WithClock(func() time.Time { return testNow }))

	ev := amqp.NewBillingEvent(amqp.InvoiceUpdated, 1, 2,
		core.Period{Month: 3, Year: 2025}, core.Period{Month: 4, Year: 2025})
	require.NoError(t, w.HandleEvent(context.Background(), ev))

	assert.Equal(t, []core.Period{{Month: 3, Year: 2025}, {Month: 4, Year: 2025}}, refresher.refreshed)
	got, ok := exporter.Summary(core.Period{Month: 4, Year: 2025})
	require.True(t, ok)
	assert.True(t, got.Received.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 2, exporter.Exports())
}

func TestHandleEventWithoutPeriodsRefreshesRecentMonths(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewSummaryWorker(refresher, nil, WithClock(func() time.Time { return testNow }))

	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewBillingEvent(amqp.ClientDeleted, 0, 9)))
	assert.Equal(t, []core.Period{{Month: 1, Year: 2025}, {Month: 12, Year: 2024}}, refresher.refreshed)
}

func TestHandleEventSkipsInvalidPeriods(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewSummaryWorker(refresher, nil)

	ev := amqp.NewBillingEvent(amqp.InvoiceCreated, 1, 1, core.Period{Month: 13, Year: 2025}, core.Period{Month: 2, Year: 2025})
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	assert.Equal(t, []core.Period{{Month: 2, Year: 2025}}, refresher.refreshed)
}

func TestHandleEventReturnsFailuresForRedelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	broken := core.Period{Month: 5, Year: 2025}
	refresher := &fakeRefresher{fail: map[core.Period]error{broken: errors.New("database is locked")}}
	exporter := memory.New()
	w := NewSummaryWorker(refresher, exporter, WithMetrics(metrics))

	ev := amqp.NewBillingEvent(amqp.InvoiceStatusChanged, 1, 1, broken, core.Period{Month: 6, Year: 2025})
	err := w.HandleEvent(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	// The healthy period is still exported.
	_, ok := exporter.Summary(core.Period{Month: 6, Year: 2025})
	assert.True(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsConsumedTotal.WithLabelValues(string(amqp.InvoiceStatusChanged), "error")))
}

func TestExportFailureIsReturned(t *testing.T) {
	exporter := &failingExporter{}
	w := NewSummaryWorker(&fakeRefresher{}, exporter)

	err := w.HandleEvent(context.Background(), amqp.NewBillingEvent(amqp.InvoicesSwept, 0, 0, core.Period{Month: 1, Year: 2025}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, exporter.calls)
}

func TestRefreshRecent(t *testing.T) {
	refresher := &fakeRefresher{}
	exporter := memory.New()
	w := NewSummaryWorker(refresher, exporter, WithClock(func() time.Time { return testNow }))

	require.NoError(t, w.RefreshRecent(context.Background()))
	assert.Len(t, refresher.refreshed, 2)
	_, ok := exporter.Summary(core.Period{Month: 12, Year: 2024})
	assert.True(t, ok)
}

type countingSweeper struct {
	calls int
	err   error
}

func (s *countingSweeper) SweepOverdueToday(context.Context) (int, error) {
	s.calls++
	return 3, s.err
}

func TestSchedulerRejectsInvalidSchedules(t *testing.T) {
	w := NewSummaryWorker(&fakeRefresher{}, nil)
	ctx := context.Background()

	_, err := NewScheduler(ctx, "not a schedule", "*/30 * * * *", &countingSweeper{}, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overdue sweep")

	_, err = NewScheduler(ctx, "5 0 * * *", "61 * * * *", &countingSweeper{}, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary refresh")
}

func TestSchedulerJobs(t *testing.T) {
	refresher := &fakeRefresher{}
	sweeper := &countingSweeper{}
	w := NewSummaryWorker(refresher, nil, WithClock(func() time.Time { return testNow }))

	s, err := NewScheduler(context.Background(), "5 0 * * *", "*/30 * * * *", sweeper, w)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	s.Sweep()
	s.Refresh()
	assert.Equal(t, 1, sweeper.calls)
	assert.Len(t, refresher.refreshed, 2)

	sweeper.err = errors.New("boom")
	s.Sweep()
	assert.Equal(t, 2, sweeper.calls)
}
