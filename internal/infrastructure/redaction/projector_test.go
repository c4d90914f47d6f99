package redaction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, vawa bool) *ledger.FinancialLedger {
	t.Helper()
	l, err := ledger.NewFinancialLedger(ledger.NewLedgerParams{
		ClientID:      uuid.New(),
		Name:          "Rapid Rehousing",
		VAWAProtected: vawa,
		CreatedBy:     "case-worker-1",
		Clock:         func() time.Time { return testNow },
	})
	require.NoError(t, err)

	for _, p := range []struct {
		id, payee, amount string
	}{
		{"PAY-1", "landlord-1", "850.00"},
		{"PAY-2", "landlord-1", "150.00"},
		{"PAY-3", "utility-co", "60.00"},
	} {
		_, err := l.RecordPayment(ledger.PaymentCommand{
			PaymentID:         p.id,
			Subtype:           ledger.PaymentRentCurrent,
			Amount:            decimal.RequireFromString(p.amount),
			FundingSourceCode: "ESG",
			PayeeID:           p.payee,
			PayeeName:         "Oak Street Apartments",
			RecordedBy:        "case-worker-1",
		})
		require.NoError(t, err)
	}
	return l
}

func withLevel(l *ledger.FinancialLedger, level ledger.RedactionLevel) *ledger.FinancialLedger {
	return ledger.Restore(ledger.RestoreParams{
		ID:             l.ID,
		ClientID:       l.ClientID,
		Name:           l.Name,
		Status:         l.Status,
		VAWAProtected:  l.IsVAWAProtected(),
		RedactionLevel: level,
		TotalDebits:    l.TotalDebits(),
		TotalCredits:   l.TotalCredits(),
		CreatedBy:      l.CreatedBy,
		Version:        l.Version,
		Entries:        l.Entries(),
		Communications: l.Communications(),
		Documents:      l.Documents(),
	})
}

func newTestProjector() *Projector {
	p := NewProjector()
	p.SetClock(func() time.Time { return testNow })
	return p
}

func TestProjector_UnprotectedLedger(t *testing.T) {
	l := newTestLedger(t, false)

	view, err := newTestProjector().Project(context.Background(), l, "landlord-1")
	require.NoError(t, err)

	require.NotNil(t, view.ClientID)
	assert.Equal(t, l.ClientID, *view.ClientID)
	assert.Equal(t, "Rapid Rehousing", view.ClientName)
	assert.Equal(t, ledger.RedactionNone, view.RedactionLevel)
	assert.False(t, view.VAWAProtected)
	assert.Equal(t, 4, view.VisibleTransactionCount())
	assert.True(t, view.VisiblePaymentTotal().Equal(decimal.RequireFromString("1000")))
	assert.True(t, view.VisibleBalance.IsZero())
	assert.Equal(t, testNow, view.GeneratedAt)

	for _, e := range view.VisibleEntries {
		assert.Equal(t, "landlord-1", e.PayeeID)
		assert.Equal(t, "ESG", e.FundingSourceCode)
	}
}

func TestProjector_ProtectedLedger(t *testing.T) {
	base := newTestLedger(t, true)

	tests := []struct {
		name         string
		level        ledger.RedactionLevel
		entries      int
		paymentTotal string
		check        func(t *testing.T, e ledger.LedgerEntry)
	}{
		{
			name:         "partial keeps amounts",
			level:        ledger.RedactionPartial,
			entries:      4,
			paymentTotal: "1000",
			check: func(t *testing.T, e ledger.LedgerEntry) {
				assert.Equal(t, RedactedMarker, e.TransactionID)
				assert.Empty(t, e.FundingSourceCode)
				assert.Equal(t, SystemActor, e.RecordedBy)
				assert.Contains(t, e.Description, "[DATE]")
				assert.True(t, e.Amount.IsPositive())
			},
		},
		{
			name:         "full hides amounts",
			level:        ledger.RedactionFull,
			entries:      4,
			paymentTotal: "0",
			check: func(t *testing.T, e ledger.LedgerEntry) {
				assert.Equal(t, ProtectedDescription, e.Description)
				assert.Equal(t, ledger.AccountOtherExpense, e.Account)
				assert.True(t, e.Amount.IsZero())
				assert.Empty(t, e.HUDCategoryCode)
				assert.True(t, e.Period.IsZero())
			},
		},
		{
			name:         "complete hides everything",
			level:        ledger.RedactionComplete,
			entries:      0,
			paymentTotal: "0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view, err := newTestProjector().Project(context.Background(), withLevel(base, tc.level), "landlord-1")
			require.NoError(t, err)

			assert.Nil(t, view.ClientID)
			assert.Equal(t, ConfidentialClientName, view.ClientName)
			assert.True(t, view.VAWAProtected)
			assert.Equal(t, tc.level, view.RedactionLevel)
			assert.Len(t, view.VisibleEntries, tc.entries)
			assert.True(t, view.VisiblePaymentTotal().Equal(decimal.RequireFromString(tc.paymentTotal)))
			if tc.level.HidesAmounts() {
				assert.True(t, view.VisibleBalance.IsZero())
			}
			for _, e := range view.VisibleEntries {
				assert.Equal(t, "landlord-1", e.PayeeID)
				if tc.check != nil {
					tc.check(t, e)
				}
			}
		})
	}

	t.Run("source snapshot is not modified", func(t *testing.T) {
		_, err := newTestProjector().Project(context.Background(), base, "landlord-1")
		require.NoError(t, err)
		for _, e := range base.Entries() {
			assert.NotEqual(t, RedactedMarker, e.TransactionID)
		}
	})

	t.Run("protected ledger at NONE is projected as FULL", func(t *testing.T) {
		view, err := newTestProjector().Project(context.Background(), withLevel(base, ledger.RedactionNone), "landlord-1")
		require.NoError(t, err)
		assert.Equal(t, ledger.RedactionFull, view.RedactionLevel)
	})
}

func TestProjector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProjector().Project(ctx, newTestLedger(t, false), "landlord-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedactDescription(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"Rent payment on 2024-06-01", "Rent payment on [DATE]"},
		{"Paid $1,250.00 to landlord", "Paid $[AMOUNT] to landlord"},
		{"Covered by Grant ESG2024", "Covered by Grant [REDACTED]"},
		{"Emergency Fund Alpha", "Emergency Fund [REDACTED]"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, RedactDescription(tc.input))
		})
	}
}
