package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"faturamento/internal/core"
)

// Columns A..F: month, received, pending, overdue, cancelled, updated at.
const lastColumn = "F"

func headerRow() []any {
	return []any{"Mês", "Recebido", "Pendente", "Atrasado", "Cancelado", "Atualizado em"}
}

func summaryRow(s core.MonthlySummary) []any {
	updated := ""
	if !s.UpdatedAt.IsZero() {
		updated = s.UpdatedAt.UTC().Format(time.DateTime)
	}
	return []any{
		s.Month,
		s.Received.StringFixed(core.MoneyPlaces),
		s.Pending.StringFixed(core.MoneyPlaces),
		s.Overdue.StringFixed(core.MoneyPlaces),
		s.Cancelled.StringFixed(core.MoneyPlaces),
		updated,
	}
}

// findMonthRow returns the 1-based sheet row whose first cell holds month.
// Header and non-numeric rows are skipped.
func findMonthRow(values [][]any, month int) (int, bool) {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		m, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(row[0])))
		if err != nil {
			continue
		}
		if m == month {
			return i + 1, true
		}
	}
	return 0, false
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
