package ledger

import "github.com/haven/ledger/internal/domain/shared"

// Ledger domain errors. Errors sharing a code match each other under errors.Is.
var (
	ErrLedgerNotFound          = shared.NewDomainError("LEDGER_NOT_FOUND", "Financial ledger not found")
	ErrInvalidAmount           = shared.NewDomainError("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrInvalidPeriod           = shared.NewDomainError("INVALID_PERIOD", "Service period is not valid")
	ErrPeriodRequired          = shared.NewDomainError("INVALID_PERIOD", "Arrears require a service period")
	ErrPeriodIncomplete        = shared.NewDomainError("INVALID_PERIOD", "Service period requires both start and end dates")
	ErrPeriodStartAfterEnd     = shared.NewDomainError("INVALID_PERIOD", "Period start must not be after period end")
	ErrPeriodInFuture          = shared.NewDomainError("INVALID_PERIOD", "Arrears period cannot start in the future")
	ErrInvalidTransactionKind  = shared.NewDomainError("INVALID_TRANSACTION_KIND", "Transaction kind is not supported")
	ErrInvalidEntry            = shared.NewDomainError("INVALID_ENTRY", "Ledger entry is not valid")
	ErrLedgerNotActive         = shared.NewDomainError("LEDGER_NOT_ACTIVE", "Ledger is not active")
	ErrLedgerClosed            = shared.NewDomainError("LEDGER_CLOSED", "Ledger is already closed")
	ErrLedgerUnbalanced        = shared.NewDomainError("LEDGER_UNBALANCED", "Ledger debits and credits are not balanced")
	ErrDuplicateTransaction    = shared.NewDomainError("DUPLICATE_TRANSACTION", "Transaction already recorded on this ledger")
	ErrInvalidStatusTransition = shared.NewDomainError("INVALID_STATUS_TRANSITION", "Ledger status transition is not allowed")
	ErrActiveLedgerExists      = shared.NewDomainError("ACTIVE_LEDGER_EXISTS", "Client already has an active ledger")
	ErrVersionConflict         = shared.NewDomainError("VERSION_CONFLICT", "Ledger has been modified by another request")
)
