package ledger

// EntryType is the side of a double-entry posting
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// IsValid checks if the entry type is DEBIT or CREDIT
func (t EntryType) IsValid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// Opposite returns the other side of the posting
func (t EntryType) Opposite() EntryType {
	if t == EntryTypeDebit {
		return EntryTypeCredit
	}
	return EntryTypeDebit
}

// AccountCategory groups accounts of the chart by their leading code digit
type AccountCategory string

const (
	AccountCategoryAsset     AccountCategory = "ASSET"
	AccountCategoryLiability AccountCategory = "LIABILITY"
	AccountCategoryRevenue   AccountCategory = "REVENUE"
	AccountCategoryExpense   AccountCategory = "EXPENSE"
)

// NormalSide returns the side on which accounts of this category increase
func (c AccountCategory) NormalSide() EntryType {
	switch c {
	case AccountCategoryLiability, AccountCategoryRevenue:
		return EntryTypeCredit
	default:
		return EntryTypeDebit
	}
}

// AccountClassification is one account of the fixed housing-assistance chart of accounts
type AccountClassification string

const (
	AccountCashAsset            AccountClassification = "CASH_ASSET"
	AccountSecurityDepositAsset AccountClassification = "SECURITY_DEPOSIT_ASSET"
	AccountAccountsReceivable   AccountClassification = "ACCOUNTS_RECEIVABLE"
	AccountFundingLiability     AccountClassification = "FUNDING_LIABILITY"
	AccountAccountsPayable      AccountClassification = "ACCOUNTS_PAYABLE"
	AccountAccruedExpenses      AccountClassification = "ACCRUED_EXPENSES"
	AccountGrantRevenue         AccountClassification = "GRANT_REVENUE"
	AccountOtherRevenue         AccountClassification = "OTHER_REVENUE"
	AccountRentExpense          AccountClassification = "RENT_EXPENSE"
	AccountUtilityExpense       AccountClassification = "UTILITY_EXPENSE"
	AccountMovingExpense        AccountClassification = "MOVING_EXPENSE"
	AccountOtherExpense         AccountClassification = "OTHER_EXPENSE"
)

type accountDefinition struct {
	code        string
	displayName string
}

var chartOfAccounts = map[AccountClassification]accountDefinition{
	AccountCashAsset:            {code: "1010", displayName: "Cash"},
	AccountSecurityDepositAsset: {code: "1200", displayName: "Security Deposits Held"},
	AccountAccountsReceivable:   {code: "1300", displayName: "Accounts Receivable"},
	AccountFundingLiability:     {code: "2010", displayName: "Funding Liability"},
	AccountAccountsPayable:      {code: "2100", displayName: "Accounts Payable"},
	AccountAccruedExpenses:      {code: "2200", displayName: "Accrued Expenses"},
	AccountGrantRevenue:         {code: "4010", displayName: "Grant Revenue"},
	AccountOtherRevenue:         {code: "4900", displayName: "Other Revenue"},
	AccountRentExpense:          {code: "5010", displayName: "Rent Expense"},
	AccountUtilityExpense:       {code: "5020", displayName: "Utility Expense"},
	AccountMovingExpense:        {code: "5030", displayName: "Moving Expense"},
	AccountOtherExpense:         {code: "5900", displayName: "Other Expense"},
}

// AllAccounts returns the chart of accounts ordered by code
func AllAccounts() []AccountClassification {
	return []AccountClassification{
		AccountCashAsset, AccountSecurityDepositAsset, AccountAccountsReceivable,
		AccountFundingLiability, AccountAccountsPayable, AccountAccruedExpenses,
		AccountGrantRevenue, AccountOtherRevenue,
		AccountRentExpense, AccountUtilityExpense, AccountMovingExpense, AccountOtherExpense,
	}
}

// IsValid checks if the account belongs to the chart
func (a AccountClassification) IsValid() bool {
	_, ok := chartOfAccounts[a]
	return ok
}

// String returns the string representation of AccountClassification
func (a AccountClassification) String() string {
	return string(a)
}

// Code returns the numeric account code, or "" for unknown accounts
func (a AccountClassification) Code() string {
	return chartOfAccounts[a].code
}

// DisplayName returns a human-readable account name
func (a AccountClassification) DisplayName() string {
	if def, ok := chartOfAccounts[a]; ok {
		return def.displayName
	}
	return string(a)
}

// Category derives the account category from the leading digit of its code
func (a AccountClassification) Category() AccountCategory {
	code := a.Code()
	if code == "" {
		return ""
	}
	switch code[0] {
	case '1':
		return AccountCategoryAsset
	case '2':
		return AccountCategoryLiability
	case '4':
		return AccountCategoryRevenue
	case '5':
		return AccountCategoryExpense
	}
	return ""
}

// NormalSide returns the side on which the account balance increases
func (a AccountClassification) NormalSide() EntryType {
	return a.Category().NormalSide()
}

// IncreasesOn reports whether a posting of the given type increases the account balance
func (a AccountClassification) IncreasesOn(t EntryType) bool {
	return a.NormalSide() == t
}

// AccountByCode looks up an account by its numeric code
func AccountByCode(code string) (AccountClassification, bool) {
	for acct, def := range chartOfAccounts {
		if def.code == code {
			return acct, true
		}
	}
	return "", false
}
