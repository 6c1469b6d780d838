package repositories

import "fmt"

// LedgerErrorCode enumerates repository error causes for ledger operations.
type LedgerErrorCode string

const (
	// LedgerErrorUnknown represents an unspecified failure.
	LedgerErrorUnknown LedgerErrorCode = "ledger_unknown"
	// LedgerErrorTargetNotFound indicates the product or variant does not exist.
	LedgerErrorTargetNotFound LedgerErrorCode = "ledger_target_not_found"
	// LedgerErrorNotOwned indicates the target belongs to a different owner.
	LedgerErrorNotOwned LedgerErrorCode = "ledger_not_owned"
	// LedgerErrorConflict indicates the adjustment lost a concurrent-update race.
	LedgerErrorConflict LedgerErrorCode = "ledger_conflict"
)

// LedgerError wraps ledger-specific failures with machine readable codes.
type LedgerError struct {
	Op      string
	Code    LedgerErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *LedgerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewLedgerError constructs a typed ledger error.
func NewLedgerError(code LedgerErrorCode, message string, err error) *LedgerError {
	if message == "" {
		message = string(code)
	}
	return &LedgerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
