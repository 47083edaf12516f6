package services

import (
	"context"
	"log/slog"
	"time"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/observability"
)

// Clock returns the current instant. Services derive "today" from it.
type Clock func() time.Time

// EventPublisher announces ledger changes to the worker. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.BillingEvent) error
}

// Option configures the optional collaborators shared by the services.
type Option func(*options)

type options struct {
	clock     Clock
	publisher EventPublisher
	metrics   *observability.Metrics
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) today() core.Date {
	return core.DateOf(o.clock())
}

// publish sends ev without failing the caller; the database is the source of truth.
func (o options) publish(ctx context.Context, ev *amqp.BillingEvent) {
	if o.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "type", ev.Type)
		return
	}
	err := o.publisher.PublishEvent(ctx, ev)
	o.metrics.EventPublished(string(ev.Type), err)
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish billing event",
			"type", ev.Type,
			"invoice_id", ev.InvoiceID,
			"error", err)
	}
}

func periodsOf(invoices ...core.Invoice) []core.Period {
	out := make([]core.Period, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, core.PeriodOf(inv.DueDate))
	}
	return out
}
