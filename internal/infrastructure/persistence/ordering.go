package persistence

import (
	"slices"
	"strings"
)

// ordering whitelists the columns a listing may be sorted by. The column
// is interpolated into ORDER BY, so anything not listed falls back.
type ordering struct {
	columns  []string
	fallback string
}

var (
	ledgerOrdering = ordering{
		columns:  []string{"id", "created_at", "updated_at", "last_modified", "name", "status", "total_debits", "total_credits"},
		fallback: "created_at",
	}
	runOrdering = ordering{
		columns:  []string{"reconciliation_date", "generated_at", "discrepancy_count", "created_at"},
		fallback: "reconciliation_date",
	}
)

func (o ordering) column(field string) string {
	field = strings.TrimSpace(field)
	if slices.Contains(o.columns, field) {
		return field
	}
	return o.fallback
}

// descending is the default; only an explicit asc sorts ascending
func descending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

func (o ordering) clause(field, dir string) string {
	if descending(dir) {
		return o.column(field) + " DESC"
	}
	return o.column(field) + " ASC"
}
