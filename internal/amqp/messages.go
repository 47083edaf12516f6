package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"faturamento/internal/core"
)

// EventType names what happened to the ledger.
type EventType string

const (
	InvoiceCreated          EventType = "invoice.created"
	InvoiceUpdated          EventType = "invoice.updated"
	InvoiceStatusChanged    EventType = "invoice.status_changed"
	InvoiceDeleted          EventType = "invoice.deleted"
	InvoiceSuccessorCreated EventType = "invoice.successor_created"
	InvoicesSwept           EventType = "invoices.swept"
	ClientDeleted           EventType = "client.deleted"
)

// BillingEvent is a lightweight notification that invoice totals changed for
// one or more periods. The worker recomputes the summaries for Periods.
type BillingEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	InvoiceID int64         `json:"invoice_id,omitempty"`
	ClientID  int64         `json:"client_id,omitempty"`
	Periods   []core.Period `json:"periods"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewBillingEvent creates an event with a fresh id. Duplicate periods are dropped.
func NewBillingEvent(typ EventType, invoiceID, clientID int64, periods ...core.Period) *BillingEvent {
	return &BillingEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		InvoiceID: invoiceID,
		ClientID:  clientID,
		Periods:   uniquePeriods(periods),
		Timestamp: time.Now().UTC(),
	}
}

func uniquePeriods(periods []core.Period) []core.Period {
	seen := make(map[core.Period]struct{}, len(periods))
	out := make([]core.Period, 0, len(periods))
	for _, p := range periods {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ToJSON converts the event to JSON bytes
func (e *BillingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BillingEventFromJSON decodes and validates an event body.
func BillingEventFromJSON(data []byte) (*BillingEvent, error) {
	var ev BillingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event %q has no type", ev.ID)
	}
	for _, p := range ev.Periods {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("event %q period %s: %w", ev.ID, p, err)
		}
	}
	return &ev, nil
}
