package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DepositMatch is the consumption state of one funding deposit
type DepositMatch struct {
	Deposit   LedgerEntry
	Consumed  decimal.Decimal
	Remaining decimal.Decimal
}

// IsMatched reports whether the deposit has been fully consumed by disbursements
func (m DepositMatch) IsMatched() bool {
	return !m.Remaining.IsPositive()
}

// MatchDeposits consumes funding deposits first-in first-out by recording order.
// Each disbursement debit draws on the oldest deposit of the same funding source
// that was recorded before it. Disbursements with no open deposit are ignored.
func MatchDeposits(entries []LedgerEntry) []DepositMatch {
	ordered := make([]LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	var matches []DepositMatch
	open := make(map[string][]int)

	for _, e := range ordered {
		switch {
		case e.IsFundingDeposit():
			matches = append(matches, DepositMatch{Deposit: e, Consumed: decimal.Zero, Remaining: e.Amount})
			open[e.FundingSourceCode] = append(open[e.FundingSourceCode], len(matches)-1)
		case e.IsDisbursement():
			need := e.Amount
			queue := open[e.FundingSourceCode]
			for need.IsPositive() && len(queue) > 0 {
				m := &matches[queue[0]]
				take := decimal.Min(need, m.Remaining)
				m.Consumed = m.Consumed.Add(take)
				m.Remaining = m.Remaining.Sub(take)
				need = need.Sub(take)
				if !m.Remaining.IsPositive() {
					queue = queue[1:]
				}
			}
			open[e.FundingSourceCode] = queue
		}
	}
	return matches
}

// UnmatchedDepositsBefore returns deposits recorded before the cutoff that still hold funds
func UnmatchedDepositsBefore(entries []LedgerEntry, cutoff time.Time) []DepositMatch {
	var out []DepositMatch
	for _, m := range MatchDeposits(entries) {
		if !m.IsMatched() && m.Deposit.RecordedBefore(cutoff) {
			out = append(out, m)
		}
	}
	return out
}
