package ledger

// HUD financial assistance reporting categories
const (
	HUDCategoryRentalAssistance  = "4.02"
	HUDCategoryUtilityAssistance = "4.03"
	HUDCategorySecurityDeposit   = "4.04"
	HUDCategoryMovingCosts       = "4.05"
	HUDCategoryOther             = "4.99"
)

// TransactionKind is the business event that produced a debit/credit pair
type TransactionKind string

const (
	KindRentPayment     TransactionKind = "RENT_PAYMENT"
	KindRentArrears     TransactionKind = "RENT_ARREARS"
	KindUtilityPayment  TransactionKind = "UTILITY_PAYMENT"
	KindUtilityArrears  TransactionKind = "UTILITY_ARREARS"
	KindSecurityDeposit TransactionKind = "SECURITY_DEPOSIT"
	KindMovingCosts     TransactionKind = "MOVING_COSTS"
	KindOtherPayment    TransactionKind = "OTHER_PAYMENT"
	KindFundingDeposit  TransactionKind = "FUNDING_DEPOSIT"
)

type kindPosting struct {
	debit  AccountClassification
	credit AccountClassification
}

var kindPostings = map[TransactionKind]kindPosting{
	KindRentPayment:     {debit: AccountRentExpense, credit: AccountCashAsset},
	KindRentArrears:     {debit: AccountRentExpense, credit: AccountCashAsset},
	KindUtilityPayment:  {debit: AccountUtilityExpense, credit: AccountCashAsset},
	KindUtilityArrears:  {debit: AccountUtilityExpense, credit: AccountCashAsset},
	KindSecurityDeposit: {debit: AccountSecurityDepositAsset, credit: AccountCashAsset},
	KindMovingCosts:     {debit: AccountMovingExpense, credit: AccountCashAsset},
	KindOtherPayment:    {debit: AccountOtherExpense, credit: AccountCashAsset},
	KindFundingDeposit:  {debit: AccountCashAsset, credit: AccountFundingLiability},
}

// IsValid checks if the kind is a supported transaction shape
func (k TransactionKind) IsValid() bool {
	_, ok := kindPostings[k]
	return ok
}

// String returns the string representation of TransactionKind
func (k TransactionKind) String() string {
	return string(k)
}

// IsArrears reports whether the kind pays a past-due obligation
func (k TransactionKind) IsArrears() bool {
	return k == KindRentArrears || k == KindUtilityArrears
}

// IsDeposit reports whether the kind records funds received
func (k TransactionKind) IsDeposit() bool {
	return k == KindFundingDeposit
}

// RequiresPeriod reports whether entries of this kind must carry service period bounds
func (k TransactionKind) RequiresPeriod() bool {
	return k.IsArrears()
}

// DebitAccount returns the account debited for this kind
func (k TransactionKind) DebitAccount() AccountClassification {
	return kindPostings[k].debit
}

// CreditAccount returns the account credited for this kind
func (k TransactionKind) CreditAccount() AccountClassification {
	return kindPostings[k].credit
}

// DefaultHUDCategory returns the reporting category used when the caller supplies none
func (k TransactionKind) DefaultHUDCategory() string {
	switch k {
	case KindRentPayment, KindRentArrears:
		return HUDCategoryRentalAssistance
	case KindUtilityPayment, KindUtilityArrears:
		return HUDCategoryUtilityAssistance
	case KindSecurityDeposit:
		return HUDCategorySecurityDeposit
	case KindMovingCosts:
		return HUDCategoryMovingCosts
	case KindOtherPayment:
		return HUDCategoryOther
	}
	return ""
}

// PaymentSubtype is the caller-facing classification of an assistance payment
type PaymentSubtype string

const (
	PaymentRentCurrent     PaymentSubtype = "RENT_CURRENT"
	PaymentRentArrears     PaymentSubtype = "RENT_ARREARS"
	PaymentUtilityCurrent  PaymentSubtype = "UTILITY_CURRENT"
	PaymentUtilityArrears  PaymentSubtype = "UTILITY_ARREARS"
	PaymentSecurityDeposit PaymentSubtype = "SECURITY_DEPOSIT"
	PaymentMovingCosts     PaymentSubtype = "MOVING_COSTS"
	PaymentOther           PaymentSubtype = "OTHER"
)

// IsValid checks if the subtype is known
func (s PaymentSubtype) IsValid() bool {
	return s.Kind() != ""
}

// String returns the string representation of PaymentSubtype
func (s PaymentSubtype) String() string {
	return string(s)
}

// Kind maps the subtype to the transaction kind that posts it
func (s PaymentSubtype) Kind() TransactionKind {
	switch s {
	case PaymentRentCurrent:
		return KindRentPayment
	case PaymentRentArrears:
		return KindRentArrears
	case PaymentUtilityCurrent:
		return KindUtilityPayment
	case PaymentUtilityArrears:
		return KindUtilityArrears
	case PaymentSecurityDeposit:
		return KindSecurityDeposit
	case PaymentMovingCosts:
		return KindMovingCosts
	case PaymentOther:
		return KindOtherPayment
	}
	return ""
}

// DisplayName returns a human-readable name used in generated descriptions
func (s PaymentSubtype) DisplayName() string {
	switch s {
	case PaymentRentCurrent:
		return "Rent"
	case PaymentRentArrears:
		return "Rent arrears"
	case PaymentUtilityCurrent:
		return "Utilities"
	case PaymentUtilityArrears:
		return "Utility arrears"
	case PaymentSecurityDeposit:
		return "Security deposit"
	case PaymentMovingCosts:
		return "Moving costs"
	case PaymentOther:
		return "Other assistance"
	}
	return string(s)
}

// ArrearsType distinguishes rent from utility arrears
type ArrearsType string

const (
	ArrearsTypeRent    ArrearsType = "RENT"
	ArrearsTypeUtility ArrearsType = "UTILITY"
)

// IsValid checks if the arrears type is known
func (a ArrearsType) IsValid() bool {
	return a == ArrearsTypeRent || a == ArrearsTypeUtility
}

// Kind maps the arrears type to its transaction kind
func (a ArrearsType) Kind() TransactionKind {
	if a == ArrearsTypeUtility {
		return KindUtilityArrears
	}
	return KindRentArrears
}

// HUDCategory returns the reporting category for arrears of this type
func (a ArrearsType) HUDCategory() string {
	return a.Kind().DefaultHUDCategory()
}
