package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AlertPolicy holds the thresholds used to detect alert conditions.
// Day windows are evaluated on UTC calendar dates.
type AlertPolicy struct {
	OverdueArrearsDays          int
	UnmatchedDepositDays        int
	LargeDisbursementThreshold  decimal.Decimal
	LargeDisbursementWindowDays int
}

// DefaultAlertPolicy returns 30 day overdue and unmatched windows and a 5000 threshold over 7 days
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		OverdueArrearsDays:          30,
		UnmatchedDepositDays:        30,
		LargeDisbursementThreshold:  decimal.NewFromInt(5000),
		LargeDisbursementWindowDays: 7,
	}
}

// OverdueCutoff returns the instant before which arrears count as overdue
func (p AlertPolicy) OverdueCutoff(now time.Time) time.Time {
	return truncateDate(now).AddDate(0, 0, -p.OverdueArrearsDays)
}

// UnmatchedCutoff returns the instant before which unspent deposits are reported
func (p AlertPolicy) UnmatchedCutoff(now time.Time) time.Time {
	return truncateDate(now).AddDate(0, 0, -p.UnmatchedDepositDays)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDate(to).Sub(truncateDate(from)).Hours() / 24)
}

// HasArrearsRecordedBefore reports whether any arrears entry predates the cutoff
func HasArrearsRecordedBefore(entries []LedgerEntry, cutoff time.Time) bool {
	for _, e := range entries {
		if e.IsArrears() && e.RecordedBefore(cutoff) {
			return true
		}
	}
	return false
}

// OverdueArrears lists arrears entries past the overdue window. Only the
// debit side of each arrears transaction is reported.
func (p AlertPolicy) OverdueArrears(l *FinancialLedger, now time.Time) []OverdueArrearsDetail {
	cutoff := p.OverdueCutoff(now)
	var out []OverdueArrearsDetail
	for _, e := range l.entries {
		if !e.IsArrears() || !e.IsDebit() || !e.RecordedBefore(cutoff) {
			continue
		}
		arrearsType := ArrearsTypeRent
		if e.Kind == KindUtilityArrears {
			arrearsType = ArrearsTypeUtility
		}
		out = append(out, OverdueArrearsDetail{
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
			PayeeName:     e.PayeeName,
			RecordedOn:    truncateDate(e.RecordedAt),
			DaysOverdue:   daysBetween(e.RecordedAt, now),
			ArrearsType:   arrearsType,
		})
	}
	return out
}

// UnmatchedDeposits lists deposits older than the unmatched window whose funds
// have not been consumed by disbursements of the same funding source.
func (p AlertPolicy) UnmatchedDeposits(l *FinancialLedger, now time.Time) []UnmatchedDepositDetail {
	var out []UnmatchedDepositDetail
	for _, m := range UnmatchedDepositsBefore(l.entries, p.UnmatchedCutoff(now)) {
		out = append(out, UnmatchedDepositDetail{
			TransactionID:     m.Deposit.TransactionID,
			Amount:            m.Remaining,
			DepositAmount:     m.Deposit.Amount,
			FundingSourceCode: m.Deposit.FundingSourceCode,
			RecordedOn:        truncateDate(m.Deposit.RecordedAt),
			DaysUnmatched:     daysBetween(m.Deposit.RecordedAt, now),
		})
	}
	return out
}

// LargeDisbursements lists DEBIT entries above the threshold recorded within
// the window. Funding deposits count: their cash debit is money moved too.
func (p AlertPolicy) LargeDisbursements(l *FinancialLedger, now time.Time) []LargeDisbursementDetail {
	today := truncateDate(now)
	windowStart := today.AddDate(0, 0, -p.LargeDisbursementWindowDays)
	var out []LargeDisbursementDetail
	for _, e := range l.entries {
		if !e.IsDebit() || !e.Amount.GreaterThan(p.LargeDisbursementThreshold) {
			continue
		}
		day := truncateDate(e.RecordedAt)
		if day.Before(windowStart) || day.After(today) {
			continue
		}
		out = append(out, LargeDisbursementDetail{
			TransactionID: e.TransactionID,
			Amount:        e.Amount,
			PayeeName:     e.PayeeName,
			RecordedBy:    e.RecordedBy,
			RecordedOn:    day,
		})
	}
	return out
}

// OverdueArrearsAlert builds the HIGH alert for a ledger, or returns false when nothing is overdue
func (p AlertPolicy) OverdueArrearsAlert(l *FinancialLedger, now time.Time) (Alert, bool) {
	details := p.OverdueArrears(l, now)
	if len(details) == 0 {
		return Alert{}, false
	}
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Amount)
	}
	alert := NewAlert(AlertOverdueArrears, SeverityHigh, l.ClientID, l.ID,
		"Overdue Arrears Detected",
		fmt.Sprintf("Client has %s in overdue arrears across %d items. Immediate attention required.", FormatUSD(total), len(details)),
		total, now)
	alert.Details = details
	return alert, true
}

// UnmatchedDepositsAlert builds the MEDIUM alert for a ledger with unspent deposits
func (p AlertPolicy) UnmatchedDepositsAlert(l *FinancialLedger, now time.Time) (Alert, bool) {
	details := p.UnmatchedDeposits(l, now)
	if len(details) == 0 {
		return Alert{}, false
	}
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Amount)
	}
	alert := NewAlert(AlertUnmatchedDeposits, SeverityMedium, l.ClientID, l.ID,
		"Unmatched Deposits Found",
		fmt.Sprintf("%s in deposits have not been matched to expenses after %d+ days.", FormatUSD(total), p.UnmatchedDepositDays),
		total, now)
	alert.Details = details
	return alert, true
}

// ImbalanceAlert builds the CRITICAL alert for a ledger whose totals disagree
func (p AlertPolicy) ImbalanceAlert(l *FinancialLedger, now time.Time) (Alert, bool) {
	if l.IsBalanced() {
		return Alert{}, false
	}
	imbalance := l.Imbalance()
	alert := NewAlert(AlertLedgerImbalance, SeverityCritical, l.ClientID, l.ID,
		"Ledger Imbalance Detected",
		fmt.Sprintf("Ledger is out of balance by %s. Immediate reconciliation required.", FormatUSD(imbalance)),
		imbalance, now)
	alert.Details = []LedgerImbalanceDetail{{
		TotalDebits:  l.TotalDebits(),
		TotalCredits: l.TotalCredits(),
		Imbalance:    imbalance,
		LastModified: l.LastModified,
	}}
	return alert, true
}

// LargeDisbursementAlert builds the MEDIUM alert for recent large debits
func (p AlertPolicy) LargeDisbursementAlert(l *FinancialLedger, now time.Time) (Alert, bool) {
	details := p.LargeDisbursements(l, now)
	if len(details) == 0 {
		return Alert{}, false
	}
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Amount)
	}
	alert := NewAlert(AlertLargeDisbursement, SeverityMedium, l.ClientID, l.ID,
		"Large Disbursements Detected",
		fmt.Sprintf("%s in large disbursements (>%s) made in the last %d days.",
			FormatUSD(total), FormatUSD(p.LargeDisbursementThreshold), p.LargeDisbursementWindowDays),
		total, now)
	alert.Details = details
	return alert, true
}

// ComplianceAlert builds the HIGH alert for a protected ledger with compliance issues
func ComplianceAlert(l *FinancialLedger, issues []ComplianceIssue, now time.Time) (Alert, bool) {
	if len(issues) == 0 {
		return Alert{}, false
	}
	alert := NewAlert(AlertVAWACompliance, SeverityHigh, l.ClientID, l.ID,
		"VAWA Compliance Issues",
		fmt.Sprintf("Found %d potential VAWA compliance issues requiring review.", len(issues)),
		decimal.Zero, now)
	alert.Details = issues
	return alert, true
}
