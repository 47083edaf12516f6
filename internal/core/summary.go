package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlySummary holds invoice totals by status for one (month, year).
type MonthlySummary struct {
	ID        int64           `json:"id,omitempty"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Received  decimal.Decimal `json:"received"`
	Pending   decimal.Decimal `json:"pending"`
	Overdue   decimal.Decimal `json:"overdue"`
	Cancelled decimal.Decimal `json:"cancelled"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	// Persisted is false when the summary was computed on the fly.
	Persisted bool `json:"persisted"`
	// Error is set when computation failed and the totals were zero-filled.
	Error string `json:"error,omitempty"`
}

// EmptySummary returns a zero-filled summary for the period.
func EmptySummary(p Period) MonthlySummary {
	return MonthlySummary{
		Month:     p.Month,
		Year:      p.Year,
		Received:  decimal.Zero,
		Pending:   decimal.Zero,
		Overdue:   decimal.Zero,
		Cancelled: decimal.Zero,
	}
}

// Period returns the summary's month and year.
func (s MonthlySummary) Period() Period {
	return Period{Month: s.Month, Year: s.Year}
}

// Add accumulates value into the bucket for status. Unknown statuses are ignored.
func (s *MonthlySummary) Add(status Status, value decimal.Decimal) {
	switch status {
	case StatusPaid:
		s.Received = s.Received.Add(value)
	case StatusPending:
		s.Pending = s.Pending.Add(value)
	case StatusOverdue:
		s.Overdue = s.Overdue.Add(value)
	case StatusCancelled:
		s.Cancelled = s.Cancelled.Add(value)
	}
}

// SameTotals reports whether both summaries carry equal totals for the same period.
func (s MonthlySummary) SameTotals(other MonthlySummary) bool {
	return s.Month == other.Month && s.Year == other.Year &&
		s.Received.Equal(other.Received) &&
		s.Pending.Equal(other.Pending) &&
		s.Overdue.Equal(other.Overdue) &&
		s.Cancelled.Equal(other.Cancelled)
}
