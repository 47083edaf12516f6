package memory

import (
	"context"
	"log/slog"
	"sync"

	"faturamento/internal/core"
	ports "faturamento/internal/sheets"
)

// Exporter keeps the last exported summary per period. It stands in for the
// spreadsheet when no Google credentials are configured.
type Exporter struct {
	mu      sync.Mutex
	rows    map[core.Period]core.MonthlySummary
	exports int
}

var _ ports.SummaryExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[core.Period]core.MonthlySummary)}
}

// ExportSummary replaces the stored row for the summary's period.
func (e *Exporter) ExportSummary(ctx context.Context, s core.MonthlySummary) error {
	if err := s.Period().Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[s.Period()] = s
	e.exports++
	slog.DebugContext(ctx, "Summary exported to memory", "period", s.Period().String())
	return nil
}

// Summary returns the last exported summary for the period.
func (e *Exporter) Summary(p core.Period) (core.MonthlySummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.rows[p]
	return s, ok
}

// Exports returns how many exports succeeded.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
