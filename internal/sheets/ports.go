package sheets

import (
	"context"

	"faturamento/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter publishes a persisted monthly summary to an external
	// report. Exporting the same period again replaces the previous values.
	SummaryExporter interface {
		ExportSummary(ctx context.Context, s core.MonthlySummary) error
	}
)
