package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"faturamento/internal/core"
)

type summaryRow struct {
	ID        int64     `db:"id"`
	Month     int       `db:"month"`
	Year      int       `db:"year"`
	Received  string    `db:"received"`
	Pending   string    `db:"pending"`
	Overdue   string    `db:"overdue"`
	Cancelled string    `db:"cancelled"`
	UpdatedAt time.Time `db:"updated_at"`
}

const summaryColumns = `id, month, year, received, pending, overdue, cancelled, updated_at`

func (r summaryRow) toCore() (core.MonthlySummary, error) {
	s := core.MonthlySummary{
		ID:        r.ID,
		Month:     r.Month,
		Year:      r.Year,
		UpdatedAt: r.UpdatedAt,
		Persisted: true,
	}
	fields := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&s.Received, r.Received},
		{&s.Pending, r.Pending},
		{&s.Overdue, r.Overdue},
		{&s.Cancelled, r.Cancelled},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return core.MonthlySummary{}, fmt.Errorf("summary %d-%02d total %q: %w", r.Year, r.Month, f.raw, err)
		}
		*f.dst = v
	}
	return s, nil
}

// GetSummary returns the persisted summary for p or a core.ErrNotFound error.
func (q *Queries) GetSummary(ctx context.Context, p core.Period) (core.MonthlySummary, error) {
	var row summaryRow
	err := sqlx.GetContext(ctx, q.db, &row,
		`SELECT `+summaryColumns+` FROM monthly_summaries WHERE month = ? AND year = ?`, p.Month, p.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySummary{}, fmt.Errorf("summary %s: %w", p, core.ErrNotFound)
	}
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("get summary %s: %w", p, err)
	}
	return row.toCore()
}

// UpsertSummary writes the totals for the summary's period, replacing any
// existing row.
func (q *Queries) UpsertSummary(ctx context.Context, s core.MonthlySummary) (core.MonthlySummary, error) {
	updated := q.now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries (month, year, received, pending, overdue, cancelled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (month, year) DO UPDATE SET
			received = excluded.received,
			pending = excluded.pending,
			overdue = excluded.overdue,
			cancelled = excluded.cancelled,
			updated_at = excluded.updated_at`,
		s.Month, s.Year,
		s.Received.StringFixed(core.MoneyPlaces),
		s.Pending.StringFixed(core.MoneyPlaces),
		s.Overdue.StringFixed(core.MoneyPlaces),
		s.Cancelled.StringFixed(core.MoneyPlaces),
		updated)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("upsert summary %s: %w", s.Period(), err)
	}

	slog.DebugContext(ctx, "Monthly summary persisted",
		"period", s.Period().String(),
		"received", s.Received.StringFixed(core.MoneyPlaces),
		"pending", s.Pending.StringFixed(core.MoneyPlaces))

	return q.GetSummary(ctx, s.Period())
}

func (q *Queries) LatestSummaries(ctx context.Context, limit int) ([]core.MonthlySummary, error) {
	var rows []summaryRow
	if err := sqlx.SelectContext(ctx, q.db, &rows,
		`SELECT `+summaryColumns+` FROM monthly_summaries ORDER BY year DESC, month DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("latest summaries: %w", err)
	}
	out := make([]core.MonthlySummary, 0, len(rows))
	for _, r := range rows {
		s, err := r.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
