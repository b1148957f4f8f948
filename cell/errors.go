package cell

import (
	"errors"
	"fmt"
)

// BorrowErrorCode categorizes borrow failures.
type BorrowErrorCode string

const (
	// ErrCodeContention indicates a borrow conflicts with existing access,
	// e.g. an exclusive borrow was requested while shared borrows exist.
	// Recoverable: callers typically surface this as "value is currently
	// borrowed" and retry or fail the current dispatch.
	ErrCodeContention BorrowErrorCode = "CONTENTION"

	// ErrCodeWrongReference indicates Park was called with a pointer that is
	// not the cell's current pointer. This is a caller-side logic bug
	// (a stale or foreign reference was passed in); the cell's state is
	// unchanged.
	ErrCodeWrongReference BorrowErrorCode = "WRONG_REFERENCE"

	// ErrCodePoisoned indicates the cell detected an invariant violation
	// earlier (such as an out-of-order park release) and refuses all further
	// operations. Not recoverable for this cell instance.
	ErrCodePoisoned BorrowErrorCode = "POISONED"

	// ErrCodeLogic indicates a release-protocol bug, e.g. releasing a guard
	// twice or decrementing a counter that is already zero.
	ErrCodeLogic BorrowErrorCode = "LOGIC"
)

// BorrowError is the error type returned by all cell and guard operations.
//
// Contention and wrong-reference errors are returned to the immediate
// caller, who decides whether to retry or fail. Poisoned errors are sticky:
// once the cell is poisoned, every operation returns the same reason until
// the cell is discarded.
type BorrowError struct {
	// Code identifies the failure category.
	Code BorrowErrorCode

	// Message is a human-readable description. For poisoned errors it
	// carries the original poisoning reason.
	Message string
}

// Error implements the error interface.
func (e *BorrowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContention returns true if the error is a contention error.
// Uses errors.As to handle wrapped errors.
func IsContention(err error) bool {
	return hasCode(err, ErrCodeContention)
}

// IsWrongReference returns true if the error is a wrong-reference error.
// Uses errors.As to handle wrapped errors.
func IsWrongReference(err error) bool {
	return hasCode(err, ErrCodeWrongReference)
}

// IsPoisoned returns true if the error reports a poisoned cell.
// Uses errors.As to handle wrapped errors.
func IsPoisoned(err error) bool {
	return hasCode(err, ErrCodePoisoned)
}

// IsLogic returns true if the error is a release-protocol logic error.
// Uses errors.As to handle wrapped errors.
func IsLogic(err error) bool {
	return hasCode(err, ErrCodeLogic)
}

func hasCode(err error, code BorrowErrorCode) bool {
	var be *BorrowError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

func contentionErr(format string, args ...any) *BorrowError {
	return &BorrowError{Code: ErrCodeContention, Message: fmt.Sprintf(format, args...)}
}

func wrongReferenceErr(format string, args ...any) *BorrowError {
	return &BorrowError{Code: ErrCodeWrongReference, Message: fmt.Sprintf(format, args...)}
}

func poisonedErr(reason string) *BorrowError {
	return &BorrowError{Code: ErrCodePoisoned, Message: reason}
}

func logicErr(format string, args ...any) *BorrowError {
	return &BorrowError{Code: ErrCodeLogic, Message: fmt.Sprintf(format, args...)}
}
