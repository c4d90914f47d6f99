package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCheckTransactionID marks imbalance discrepancies, which have no transaction
const BalanceCheckTransactionID = "BALANCE_CHECK"

// AccountingExport is the external system of record a ledger set is reconciled against
type AccountingExport interface {
	HasTransaction(id string) bool
	TransactionAmount(id string) decimal.Decimal
	TransactionDate(id string) time.Time
	TransactionIDs() []string
	TotalTransactions() int
}

// FundingSourceLookup is implemented by exports whose rows may carry a
// funding source code. HasFundingSources is false when no row does.
type FundingSourceLookup interface {
	HasFundingSources() bool
	TransactionFundingSource(id string) string
}

// DiscrepancyType classifies a reconciliation finding
type DiscrepancyType string

const (
	DiscrepancyMissingInExport      DiscrepancyType = "MISSING_IN_EXPORT"
	DiscrepancyMissingInLedger      DiscrepancyType = "MISSING_IN_LEDGER"
	DiscrepancyAmountMismatch       DiscrepancyType = "AMOUNT_MISMATCH"
	DiscrepancyLedgerImbalance      DiscrepancyType = "LEDGER_IMBALANCE"
	DiscrepancyDuplicateTransaction DiscrepancyType = "DUPLICATE_TRANSACTION"
)

// Discrepancy is one difference between the ledgers and the export.
// For AMOUNT_MISMATCH the amount is ledger minus export.
type Discrepancy struct {
	Type            DiscrepancyType `json:"type"`
	LedgerID        *uuid.UUID      `json:"ledger_id,omitempty"`
	TransactionID   string          `json:"transaction_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// ReconciliationReport is the diagnostic result of a reconciliation run
type ReconciliationReport struct {
	ID                      uuid.UUID       `json:"id"`
	ReconciliationDate      time.Time       `json:"reconciliation_date"`
	FundingSourceCode       string          `json:"funding_source_code,omitempty"`
	TotalLedgers            int             `json:"total_ledgers"`
	TotalExportTransactions int             `json:"total_export_transactions"`
	Discrepancies           []Discrepancy   `json:"discrepancies"`
	TotalDiscrepancyAmount  decimal.Decimal `json:"total_discrepancy_amount"`
	IsBalanced              bool            `json:"is_balanced"`
	GeneratedAt             time.Time       `json:"generated_at"`
}

// CountByType returns the number of discrepancies of each type
func (r ReconciliationReport) CountByType() map[DiscrepancyType]int {
	counts := make(map[DiscrepancyType]int)
	for _, d := range r.Discrepancies {
		counts[d.Type]++
	}
	return counts
}

type reconcileScope struct {
	ledger  *FinancialLedger
	entries []LedgerEntry
	debits  decimal.Decimal
	credits decimal.Decimal
}

// Reconcile compares the ledgers with the export as of the given date.
// Ledgers are never modified. A zero asOf disables date filtering.
func Reconcile(ledgers []*FinancialLedger, export AccountingExport, asOf, now time.Time) ReconciliationReport {
	scopes := make([]reconcileScope, 0, len(ledgers))
	for _, l := range ledgers {
		scopes = append(scopes, reconcileScope{
			ledger:  l,
			entries: l.entries,
			debits:  l.TotalDebits(),
			credits: l.TotalCredits(),
		})
	}
	return reconcile(scopes, export, asOf, now)
}

// ReconcileFundingSourceWithExport applies the same matching restricted to
// entries tagged with the funding source and, when the export exposes funding
// source codes, to export rows of that source.
func ReconcileFundingSourceWithExport(ledgers []*FinancialLedger, export AccountingExport, code string, asOf, now time.Time) ReconciliationReport {
	scopes := make([]reconcileScope, 0, len(ledgers))
	for _, l := range ledgers {
		s := reconcileScope{ledger: l, debits: decimal.Zero, credits: decimal.Zero}
		for _, e := range l.entries {
			if e.FundingSourceCode != code {
				continue
			}
			s.entries = append(s.entries, e)
			if e.IsDebit() {
				s.debits = s.debits.Add(e.Amount)
			} else {
				s.credits = s.credits.Add(e.Amount)
			}
		}
		if len(s.entries) > 0 {
			scopes = append(scopes, s)
		}
	}
	report := reconcile(scopes, restrictExport(export, code), asOf, now)
	report.FundingSourceCode = code
	return report
}

func reconcile(scopes []reconcileScope, export AccountingExport, asOf, now time.Time) ReconciliationReport {
	var discrepancies []Discrepancy
	cutoff := time.Time{}
	if !asOf.IsZero() {
		cutoff = truncateDate(asOf).AddDate(0, 0, 1)
	}

	known := make(map[string]struct{})
	owners := make(map[string][]uuid.UUID)

	for _, s := range scopes {
		ledgerID := s.ledger.ID
		seen := make(map[string]struct{})
		for _, e := range s.entries {
			known[e.TransactionID] = struct{}{}
			if _, dup := seen[e.TransactionID]; !dup {
				seen[e.TransactionID] = struct{}{}
				owners[e.TransactionID] = append(owners[e.TransactionID], ledgerID)
			}

			if !e.IsCredit() {
				continue
			}
			if !cutoff.IsZero() && !e.RecordedBefore(cutoff) {
				continue
			}
			if !export.HasTransaction(e.TransactionID) {
				discrepancies = append(discrepancies, Discrepancy{
					Type:            DiscrepancyMissingInExport,
					LedgerID:        &ledgerID,
					TransactionID:   e.TransactionID,
					Amount:          e.Amount,
					Description:     "Transaction found in ledger but missing from accounting export",
					TransactionDate: truncateDate(e.RecordedAt),
				})
				continue
			}
			exportAmount := export.TransactionAmount(e.TransactionID)
			if !e.Amount.Equal(exportAmount) {
				discrepancies = append(discrepancies, Discrepancy{
					Type:            DiscrepancyAmountMismatch,
					LedgerID:        &ledgerID,
					TransactionID:   e.TransactionID,
					Amount:          e.Amount.Sub(exportAmount),
					Description:     fmt.Sprintf("Amount mismatch - Ledger: %s, Export: %s", e.Amount, exportAmount),
					TransactionDate: truncateDate(e.RecordedAt),
				})
			}
		}
	}

	exportIDs := append([]string(nil), export.TransactionIDs()...)
	sort.Strings(exportIDs)
	for _, id := range exportIDs {
		if _, ok := known[id]; ok {
			continue
		}
		discrepancies = append(discrepancies, Discrepancy{
			Type:            DiscrepancyMissingInLedger,
			TransactionID:   id,
			Amount:          export.TransactionAmount(id),
			Description:     "Transaction found in accounting export but missing from ledgers",
			TransactionDate: export.TransactionDate(id),
		})
	}

	dupIDs := make([]string, 0)
	for id, ledgerIDs := range owners {
		if len(ledgerIDs) > 1 {
			dupIDs = append(dupIDs, id)
		}
	}
	sort.Strings(dupIDs)
	for _, id := range dupIDs {
		ledgerIDs := owners[id]
		for _, dupLedger := range ledgerIDs[1:] {
			discrepancies = append(discrepancies, Discrepancy{
				Type:            DiscrepancyDuplicateTransaction,
				LedgerID:        &dupLedger,
				TransactionID:   id,
				Amount:          decimal.Zero,
				Description:     fmt.Sprintf("Transaction recorded on %d ledgers", len(ledgerIDs)),
				TransactionDate: truncateDate(now),
			})
		}
	}

	for _, s := range scopes {
		if s.debits.Equal(s.credits) {
			continue
		}
		ledgerID := s.ledger.ID
		imbalance := s.debits.Sub(s.credits)
		discrepancies = append(discrepancies, Discrepancy{
			Type:            DiscrepancyLedgerImbalance,
			LedgerID:        &ledgerID,
			TransactionID:   BalanceCheckTransactionID,
			Amount:          imbalance,
			Description:     fmt.Sprintf("Ledger is not balanced - Imbalance: %s", imbalance),
			TransactionDate: truncateDate(now),
		})
	}

	total := decimal.Zero
	for _, d := range discrepancies {
		total = total.Add(d.Amount.Abs())
	}

	reportDate := asOf
	if reportDate.IsZero() {
		reportDate = now
	}
	if discrepancies == nil {
		discrepancies = []Discrepancy{}
	}
	return ReconciliationReport{
		ID:                      uuid.New(),
		ReconciliationDate:      truncateDate(reportDate),
		TotalLedgers:            len(scopes),
		TotalExportTransactions: export.TotalTransactions(),
		Discrepancies:           discrepancies,
		TotalDiscrepancyAmount:  total,
		IsBalanced:              len(discrepancies) == 0,
		GeneratedAt:             now,
	}
}

type fundingSourceExport struct {
	AccountingExport
	ids []string
}

func (f fundingSourceExport) HasTransaction(id string) bool {
	for _, known := range f.ids {
		if known == id {
			return true
		}
	}
	return false
}

func (f fundingSourceExport) TransactionIDs() []string {
	return f.ids
}

func (f fundingSourceExport) TotalTransactions() int {
	return len(f.ids)
}

// restrictExport narrows an export to one funding source when its rows are
// tagged. Rows without a source stay in scope.
func restrictExport(export AccountingExport, code string) AccountingExport {
	lookup, ok := export.(FundingSourceLookup)
	if !ok || !lookup.HasFundingSources() {
		return export
	}
	var ids []string
	for _, id := range export.TransactionIDs() {
		if src := lookup.TransactionFundingSource(id); src == "" || src == code {
			ids = append(ids, id)
		}
	}
	return fundingSourceExport{AccountingExport: export, ids: ids}
}

// FundingSourceReconciliation summarizes one funding source over a date window
type FundingSourceReconciliation struct {
	FundingSourceCode string          `json:"funding_source_code"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	NetFunding        decimal.Decimal `json:"net_funding"`
	TransactionCount  int             `json:"transaction_count"`
	TransactionIDs    []string        `json:"transaction_ids"`
}

// ReconcileFundingSource totals the entries of one funding source recorded
// between start and end inclusive. Net funding is credits minus debits.
func ReconcileFundingSource(ledgers []*FinancialLedger, code string, start, end time.Time) FundingSourceReconciliation {
	period := NewPeriod(start, end)
	result := FundingSourceReconciliation{
		FundingSourceCode: code,
		StartDate:         period.Start,
		EndDate:           period.End,
		TotalDebits:       decimal.Zero,
		TotalCredits:      decimal.Zero,
		TransactionIDs:    []string{},
	}
	seen := make(map[string]struct{})
	for _, l := range ledgers {
		for _, e := range l.entries {
			if e.FundingSourceCode != code || !period.Contains(e.RecordedAt) {
				continue
			}
			if e.IsDebit() {
				result.TotalDebits = result.TotalDebits.Add(e.Amount)
			} else {
				result.TotalCredits = result.TotalCredits.Add(e.Amount)
			}
			if _, ok := seen[e.TransactionID]; !ok {
				seen[e.TransactionID] = struct{}{}
				result.TransactionIDs = append(result.TransactionIDs, e.TransactionID)
			}
		}
	}
	result.NetFunding = result.TotalCredits.Sub(result.TotalDebits)
	result.TransactionCount = len(result.TransactionIDs)
	return result
}

// DailyReconciliationSummary is the daily roll-up of alertable ledger conditions
type DailyReconciliationSummary struct {
	Date                   time.Time       `json:"date"`
	UnbalancedLedgerCount  int             `json:"unbalanced_ledger_count"`
	TotalUnbalancedAmount  decimal.Decimal `json:"total_unbalanced_amount"`
	OverdueArrearsCount    int             `json:"overdue_arrears_count"`
	UnmatchedDepositsCount int             `json:"unmatched_deposits_count"`
	TotalOverdueArrears    decimal.Decimal `json:"total_overdue_arrears"`
	TotalUnmatchedDeposits decimal.Decimal `json:"total_unmatched_deposits"`
}

// SummarizeDay builds the daily summary from the ledgers returned by the three audit queries
func SummarizeDay(date time.Time, policy AlertPolicy, unbalanced, overdue, unmatched []*FinancialLedger) DailyReconciliationSummary {
	s := DailyReconciliationSummary{
		Date:                   truncateDate(date),
		UnbalancedLedgerCount:  len(unbalanced),
		TotalUnbalancedAmount:  decimal.Zero,
		OverdueArrearsCount:    len(overdue),
		UnmatchedDepositsCount: len(unmatched),
		TotalOverdueArrears:    decimal.Zero,
		TotalUnmatchedDeposits: decimal.Zero,
	}
	for _, l := range unbalanced {
		s.TotalUnbalancedAmount = s.TotalUnbalancedAmount.Add(l.Imbalance())
	}
	for _, l := range overdue {
		for _, d := range policy.OverdueArrears(l, date) {
			s.TotalOverdueArrears = s.TotalOverdueArrears.Add(d.Amount)
		}
	}
	for _, l := range unmatched {
		for _, d := range policy.UnmatchedDeposits(l, date) {
			s.TotalUnmatchedDeposits = s.TotalUnmatchedDeposits.Add(d.Amount)
		}
	}
	return s
}
