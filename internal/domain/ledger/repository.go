package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/shared"
)

// LedgerFilter defines filtering options for ledger queries
type LedgerFilter struct {
	shared.Filter
	ClientID          *uuid.UUID    // Filter by client
	HouseholdID       *uuid.UUID    // Filter by household
	EnrollmentID      *uuid.UUID    // Filter by program enrollment
	Status            *LedgerStatus // Filter by lifecycle status
	FundingSourceCode string        // Ledgers with at least one entry for the funding source
	VAWAProtected     *bool         // Filter by confidentiality protection
}

// Repository is the ledger store. Implementations return snapshots: callers
// never observe a ledger that another request is mutating.
type Repository interface {
	// Save creates or updates a ledger with an optimistic version check
	Save(ctx context.Context, l *FinancialLedger) error

	// FindByID finds a ledger by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FinancialLedger, error)

	// FindByClientID finds all ledgers of a client
	FindByClientID(ctx context.Context, clientID uuid.UUID) ([]*FinancialLedger, error)

	// FindByEnrollmentID finds all ledgers of a program enrollment
	FindByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) ([]*FinancialLedger, error)

	// FindByHouseholdID finds all ledgers of a household
	FindByHouseholdID(ctx context.Context, householdID uuid.UUID) ([]*FinancialLedger, error)

	// FindByClientIDAndStatus finds a client's ledgers in the given status
	FindByClientIDAndStatus(ctx context.Context, clientID uuid.UUID, status LedgerStatus) ([]*FinancialLedger, error)

	// FindActiveByPayeeID finds ACTIVE ledgers with entries paid to the payee
	FindActiveByPayeeID(ctx context.Context, payeeID string) ([]*FinancialLedger, error)

	// FindByFundingSourceCode finds ledgers with entries for the funding source
	FindByFundingSourceCode(ctx context.Context, code string) ([]*FinancialLedger, error)

	// FindAll finds ledgers matching the filter
	FindAll(ctx context.Context, filter LedgerFilter) ([]*FinancialLedger, error)

	// Count counts ledgers matching the filter
	Count(ctx context.Context, filter LedgerFilter) (int64, error)

	// DeleteByID removes a ledger and its records
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// FindUnbalanced finds ledgers whose stored totals disagree
	FindUnbalanced(ctx context.Context) ([]*FinancialLedger, error)

	// FindWithOverdueArrears finds ledgers with arrears entries recorded before the cutoff
	FindWithOverdueArrears(ctx context.Context, cutoff time.Time) ([]*FinancialLedger, error)

	// FindWithUnmatchedDeposits finds ledgers with deposits recorded before the
	// cutoff that are not fully consumed by disbursements
	FindWithUnmatchedDeposits(ctx context.Context, cutoff time.Time) ([]*FinancialLedger, error)
}

// ReconciliationRun is a persisted reconciliation report
type ReconciliationRun struct {
	Report      ReconciliationReport
	TriggeredBy string
	Source      string
}

// ReconciliationRunRepository stores reconciliation history
type ReconciliationRunRepository interface {
	Save(ctx context.Context, run *ReconciliationRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*ReconciliationRun, error)
	FindRecent(ctx context.Context, filter shared.Filter) ([]ReconciliationRun, int64, error)
}
