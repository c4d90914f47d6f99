package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdering_Clause(t *testing.T) {
	tests := []struct {
		name  string
		o     ordering
		field string
		dir   string
		want  string
	}{
		{"defaults", ledgerOrdering, "", "", "created_at DESC"},
		{"ledger total ascending", ledgerOrdering, "total_debits", "asc", "total_debits ASC"},
		{"padded direction", ledgerOrdering, "status", "  ASC ", "status ASC"},
		{"padded column", ledgerOrdering, "  name  ", "desc", "name DESC"},
		{"column of another table", ledgerOrdering, "reconciliation_date", "asc", "created_at ASC"},
		{"run fallback", runOrdering, "name", "", "reconciliation_date DESC"},
		{"columns are case sensitive", ledgerOrdering, "STATUS", "", "created_at DESC"},
		{"injected column", ledgerOrdering, "id; DROP TABLE financial_ledgers;--", "asc", "created_at ASC"},
		{"injected direction", runOrdering, "generated_at", "ASC; DROP TABLE reconciliation_runs;--", "generated_at DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.o.clause(tt.field, tt.dir))
		})
	}
}
