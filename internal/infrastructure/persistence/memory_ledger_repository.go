package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
)

// MemoryLedgerRepository is an in-process ledger.Repository. It stores clones
// so callers never share state with the store or with each other.
type MemoryLedgerRepository struct {
	mu      sync.RWMutex
	ledgers map[uuid.UUID]*ledger.FinancialLedger
}

// NewMemoryLedgerRepository creates an empty MemoryLedgerRepository
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{ledgers: make(map[uuid.UUID]*ledger.FinancialLedger)}
}

var _ ledger.Repository = (*MemoryLedgerRepository)(nil)

// Save stores a snapshot of the ledger after the version check
func (r *MemoryLedgerRepository) Save(ctx context.Context, l *ledger.FinancialLedger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.ledgers[l.ID]
	switch {
	case l.IsNew() && exists:
		return ledger.ErrVersionConflict
	case !l.IsNew() && !exists:
		return ledger.ErrLedgerNotFound
	case exists && current.Version != l.PersistedVersion():
		return ledger.ErrVersionConflict
	}

	l.MarkPersisted()
	r.ledgers[l.ID] = l.Clone()
	return nil
}

// FindByID finds a ledger by its ID
func (r *MemoryLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.FinancialLedger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[id]
	if !ok {
		return nil, ledger.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

// FindByClientID finds all ledgers of a client
func (r *MemoryLedgerRepository) FindByClientID(ctx context.Context, clientID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool { return l.ClientID == clientID }), nil
}

// FindByEnrollmentID finds all ledgers of a program enrollment
func (r *MemoryLedgerRepository) FindByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool { return l.EnrollmentID == enrollmentID }), nil
}

// FindByHouseholdID finds all ledgers of a household
func (r *MemoryLedgerRepository) FindByHouseholdID(ctx context.Context, householdID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool { return l.HouseholdID == householdID }), nil
}

// FindByClientIDAndStatus finds a client's ledgers in the given status
func (r *MemoryLedgerRepository) FindByClientIDAndStatus(ctx context.Context, clientID uuid.UUID, status ledger.LedgerStatus) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool {
		return l.ClientID == clientID && l.Status == status
	}), nil
}

// FindActiveByPayeeID finds ACTIVE ledgers with entries paid to the payee
func (r *MemoryLedgerRepository) FindActiveByPayeeID(ctx context.Context, payeeID string) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool {
		return l.Status == ledger.LedgerStatusActive && l.HasPayee(payeeID)
	}), nil
}

// FindByFundingSourceCode finds ledgers with entries for the funding source
func (r *MemoryLedgerRepository) FindByFundingSourceCode(ctx context.Context, code string) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool { return l.HasFundingSource(code) }), nil
}

// FindAll finds ledgers matching the filter
func (r *MemoryLedgerRepository) FindAll(ctx context.Context, filter ledger.LedgerFilter) ([]*ledger.FinancialLedger, error) {
	matched := r.filter(func(l *ledger.FinancialLedger) bool { return matchesLedgerFilter(l, filter) })
	sortLedgers(matched, filter.OrderBy, filter.OrderDir)

	if filter.Limited() {
		offset := filter.Offset()
		if offset >= len(matched) {
			return []*ledger.FinancialLedger{}, nil
		}
		end := offset + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, nil
}

// Count counts ledgers matching the filter
func (r *MemoryLedgerRepository) Count(ctx context.Context, filter ledger.LedgerFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, l := range r.ledgers {
		if matchesLedgerFilter(l, filter) {
			n++
		}
	}
	return n, nil
}

// DeleteByID removes a ledger
func (r *MemoryLedgerRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[id]; !ok {
		return ledger.ErrLedgerNotFound
	}
	delete(r.ledgers, id)
	return nil
}

// FindUnbalanced finds ledgers whose stored totals disagree
func (r *MemoryLedgerRepository) FindUnbalanced(ctx context.Context) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool { return !l.IsBalanced() }), nil
}

// FindWithOverdueArrears finds ledgers with arrears entries recorded before the cutoff
func (r *MemoryLedgerRepository) FindWithOverdueArrears(ctx context.Context, cutoff time.Time) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool {
		for _, e := range l.Entries() {
			if e.IsArrears() && e.IsDebit() && e.RecordedBefore(cutoff) {
				return true
			}
		}
		return false
	}), nil
}

// FindWithUnmatchedDeposits finds ledgers with unspent deposits recorded before the cutoff
func (r *MemoryLedgerRepository) FindWithUnmatchedDeposits(ctx context.Context, cutoff time.Time) ([]*ledger.FinancialLedger, error) {
	return r.filter(func(l *ledger.FinancialLedger) bool {
		return len(ledger.UnmatchedDepositsBefore(l.Entries(), cutoff)) > 0
	}), nil
}

// Len returns the number of stored ledgers
func (r *MemoryLedgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ledgers)
}

// filter returns clones of the matching ledgers ordered by creation time
func (r *MemoryLedgerRepository) filter(match func(*ledger.FinancialLedger) bool) []*ledger.FinancialLedger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ledger.FinancialLedger, 0)
	for _, l := range r.ledgers {
		if match(l) {
			out = append(out, l.Clone())
		}
	}
	sortLedgers(out, "created_at", "asc")
	return out
}

func matchesLedgerFilter(l *ledger.FinancialLedger, f ledger.LedgerFilter) bool {
	if f.ClientID != nil && l.ClientID != *f.ClientID {
		return false
	}
	if f.HouseholdID != nil && l.HouseholdID != *f.HouseholdID {
		return false
	}
	if f.EnrollmentID != nil && l.EnrollmentID != *f.EnrollmentID {
		return false
	}
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.VAWAProtected != nil && l.IsVAWAProtected() != *f.VAWAProtected {
		return false
	}
	if f.FundingSourceCode != "" && !l.HasFundingSource(f.FundingSourceCode) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func sortLedgers(ledgers []*ledger.FinancialLedger, orderBy, orderDir string) {
	field := ledgerOrdering.column(orderBy)
	desc := descending(orderDir)
	less := func(a, b *ledger.FinancialLedger) bool {
		switch field {
		case "name":
			return a.Name < b.Name
		case "status":
			return a.Status < b.Status
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "last_modified":
			return a.LastModified.Before(b.LastModified)
		case "total_debits":
			return a.TotalDebits().LessThan(b.TotalDebits())
		case "total_credits":
			return a.TotalCredits().LessThan(b.TotalCredits())
		case "id":
			return a.ID.String() < b.ID.String()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	sort.SliceStable(ledgers, func(i, j int) bool {
		if desc {
			return less(ledgers[j], ledgers[i])
		}
		return less(ledgers[i], ledgers[j])
	})
}

// MemoryReconciliationRunRepository is an in-process ledger.ReconciliationRunRepository
type MemoryReconciliationRunRepository struct {
	mu   sync.RWMutex
	runs []ledger.ReconciliationRun
}

// NewMemoryReconciliationRunRepository creates an empty MemoryReconciliationRunRepository
func NewMemoryReconciliationRunRepository() *MemoryReconciliationRunRepository {
	return &MemoryReconciliationRunRepository{}
}

var _ ledger.ReconciliationRunRepository = (*MemoryReconciliationRunRepository)(nil)

// Save stores a reconciliation run
func (r *MemoryReconciliationRunRepository) Save(ctx context.Context, run *ledger.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

// FindByID finds a reconciliation run by report ID
func (r *MemoryReconciliationRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ReconciliationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.runs {
		if r.runs[i].Report.ID == id {
			run := r.runs[i]
			return &run, nil
		}
	}
	return nil, shared.ErrNotFound
}

// FindRecent returns runs newest first with the total count
func (r *MemoryReconciliationRunRepository) FindRecent(ctx context.Context, filter shared.Filter) ([]ledger.ReconciliationRun, int64, error) {
	r.mu.RLock()
	runs := append([]ledger.ReconciliationRun(nil), r.runs...)
	r.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Report.ReconciliationDate.After(runs[j].Report.ReconciliationDate)
	})
	total := int64(len(runs))
	if filter.Limited() {
		offset := filter.Offset()
		if offset >= len(runs) {
			return []ledger.ReconciliationRun{}, total, nil
		}
		end := offset + filter.PageSize
		if end > len(runs) {
			end = len(runs)
		}
		runs = runs[offset:end]
	}
	return runs, total, nil
}
