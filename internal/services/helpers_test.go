package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.BillingEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *amqp.BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// faultyStore injects errors into selected operations, inside and outside
// transactions.
type faultyStore struct {
	storage.Store
	createInvoiceErr error
	totalsErr        error
	findSuccessorErr error
}

func (f *faultyStore) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if f.createInvoiceErr != nil {
		return core.Invoice{}, f.createInvoiceErr
	}
	return f.Store.CreateInvoice(ctx, inv)
}

func (f *faultyStore) TotalsByStatus(ctx context.Context, filter core.InvoiceFilter) (map[core.Status]decimal.Decimal, error) {
	if f.totalsErr != nil {
		return nil, f.totalsErr
	}
	return f.Store.TotalsByStatus(ctx, filter)
}

func (f *faultyStore) FindSuccessor(ctx context.Context, key core.SuccessorKey) (core.Invoice, error) {
	if f.findSuccessorErr != nil {
		return core.Invoice{}, f.findSuccessorErr
	}
	return f.Store.FindSuccessor(ctx, key)
}

func (f *faultyStore) Atomic(ctx context.Context, fn func(storage.Store) error) error {
	return f.Store.Atomic(ctx, func(tx storage.Store) error {
		return fn(&faultyStore{
			Store:            tx,
			createInvoiceErr: f.createInvoiceErr,
			totalsErr:        f.totalsErr,
			findSuccessorErr: f.findSuccessorErr,
		})
	})
}

type fixture struct {
	store     storage.Store
	publisher *recordingPublisher
	clients   *ClientService
	invoices  *InvoiceService
	summaries *SummaryService
	sweeper   *Sweeper
	dashboard *DashboardService
	engine    *RecurrenceEngine
}

func newFixture(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	pub := &recordingPublisher{}
	opts := []Option{WithClock(fixedClock), WithPublisher(pub)}
	engine := NewRecurrenceEngine(store, opts...)
	return &fixture{
		store:     store,
		publisher: pub,
		clients:   NewClientService(store, opts...),
		invoices:  NewInvoiceService(store, engine, opts...),
		summaries: NewSummaryService(store, nil, opts...),
		sweeper:   NewSweeper(store, opts...),
		dashboard: NewDashboardService(store, opts...),
		engine:    engine,
	}
}

func (f *fixture) client(t *testing.T) core.Client {
	t.Helper()
	c, err := f.clients.CreateClient(context.Background(), core.Client{Name: "Acme Ltda", Email: "fin@acme.test"})
	require.NoError(t, err)
	return c
}

func (f *fixture) invoice(t *testing.T, in NewInvoice) core.Invoice {
	t.Helper()
	if in.Description == "" {
		in.Description = "Monthly retainer"
	}
	if in.Value.IsZero() {
		in.Value = decimal.NewFromInt(100)
	}
	inv, err := f.invoices.CreateInvoice(context.Background(), in)
	require.NoError(t, err)
	return inv
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
