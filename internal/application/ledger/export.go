package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ExportRow is one transaction of an accounting system export
type ExportRow struct {
	TransactionID     string          `json:"transaction_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	Date              time.Time       `json:"date"`
	FundingSourceCode string          `json:"funding_source_code"`
}

// ExportSnapshot is an immutable accounting export keyed by transaction id
type ExportSnapshot struct {
	rows    map[string]ExportRow
	ids     []string
	sourced bool
}

var (
	_ ledger.AccountingExport    = (*ExportSnapshot)(nil)
	_ ledger.FundingSourceLookup = (*ExportSnapshot)(nil)
)

// ErrDuplicateExportRow is returned when an export lists a transaction twice
var ErrDuplicateExportRow = errors.New("export contains duplicate transaction id")

// NewExportSnapshot builds a snapshot from export rows
func NewExportSnapshot(rows []ExportRow) (*ExportSnapshot, error) {
	s := &ExportSnapshot{
		rows: make(map[string]ExportRow, len(rows)),
		ids:  make([]string, 0, len(rows)),
	}
	for i, row := range rows {
		row.TransactionID = strings.TrimSpace(row.TransactionID)
		if row.TransactionID == "" {
			return nil, fmt.Errorf("export row %d: transaction id is required", i+1)
		}
		if _, exists := s.rows[row.TransactionID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateExportRow, row.TransactionID)
		}
		row.FundingSourceCode = strings.TrimSpace(row.FundingSourceCode)
		s.rows[row.TransactionID] = row
		s.ids = append(s.ids, row.TransactionID)
		s.sourced = s.sourced || row.FundingSourceCode != ""
	}
	sort.Strings(s.ids)
	return s, nil
}

// exportDateLayouts are the date formats accepted in CSV exports
var exportDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "01/02/2006"}

// ParseExportCSV reads an export with a header row. Recognized columns are
// transaction_id, amount, date and funding_source (funding_source_code);
// other columns are ignored.
func ParseExportCSV(r io.Reader) (*ExportSnapshot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewExportSnapshot(nil)
		}
		return nil, fmt.Errorf("failed to read export header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	idCol, ok := columns["transaction_id"]
	if !ok {
		return nil, errors.New("export is missing the transaction_id column")
	}
	amountCol, ok := columns["amount"]
	if !ok {
		return nil, errors.New("export is missing the amount column")
	}
	dateCol, hasDate := columns["date"]
	sourceCol, hasSource := columns["funding_source"]
	if !hasSource {
		sourceCol, hasSource = columns["funding_source_code"]
	}

	var rows []ExportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read export line %d: %w", line, err)
		}

		row := ExportRow{TransactionID: field(record, idCol)}
		row.Amount, err = decimal.NewFromString(field(record, amountCol))
		if err != nil {
			return nil, fmt.Errorf("export line %d: invalid amount: %w", line, err)
		}
		if hasDate {
			if row.Date, err = parseExportDate(field(record, dateCol)); err != nil {
				return nil, fmt.Errorf("export line %d: %w", line, err)
			}
		}
		if hasSource {
			row.FundingSourceCode = field(record, sourceCol)
		}
		rows = append(rows, row)
	}
	return NewExportSnapshot(rows)
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseExportDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range exportDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// HasTransaction implements ledger.AccountingExport
func (s *ExportSnapshot) HasTransaction(id string) bool {
	_, ok := s.rows[id]
	return ok
}

// TransactionAmount implements ledger.AccountingExport
func (s *ExportSnapshot) TransactionAmount(id string) decimal.Decimal {
	return s.rows[id].Amount
}

// TransactionDate implements ledger.AccountingExport
func (s *ExportSnapshot) TransactionDate(id string) time.Time {
	return s.rows[id].Date
}

// TransactionIDs implements ledger.AccountingExport
func (s *ExportSnapshot) TransactionIDs() []string {
	return append([]string(nil), s.ids...)
}

// TotalTransactions implements ledger.AccountingExport
func (s *ExportSnapshot) TotalTransactions() int {
	return len(s.ids)
}

// TransactionFundingSource implements ledger.FundingSourceLookup
func (s *ExportSnapshot) TransactionFundingSource(id string) string {
	return s.rows[id].FundingSourceCode
}

// HasFundingSources implements ledger.FundingSourceLookup
func (s *ExportSnapshot) HasFundingSources() bool {
	return s.sourced
}
