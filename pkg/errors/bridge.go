package errors

import (
	stderrors "errors"
	"fmt"
)

/*
BridgeError classifies a failure by the stage it happened in: validation
errors are rejected before any side effect, transport errors surface exactly
once per operation with no retry, and persistence errors report a failed
save whose in-memory mutation already happened.
*/
type BridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/*
Error implements the error interface for BridgeError.
*/
func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Code, e.Message)
}

var (
	ErrValidation  = &BridgeError{Code: "validation", Message: "invalid input"}
	ErrTransport   = &BridgeError{Code: "transport", Message: "backend unreachable"}
	ErrPersistence = &BridgeError{Code: "persistence", Message: "store write failed"}
)

// WithMessagef creates a *copy* of a BridgeError with a formatted message.
// It does not modify the original error variable.
func (e *BridgeError) WithMessagef(format string, args ...any) *BridgeError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// Is makes sentinel comparisons work through the stdlib errors package: two
// BridgeErrors match when their codes match.
func (e *BridgeError) Is(target error) bool {
	other, ok := target.(*BridgeError)
	return ok && other.Code == e.Code
}

// Code returns the taxonomy code of err, or "" when it is not a BridgeError.
func Code(err error) string {
	var bridgeErr *BridgeError

	if stderrors.As(err, &bridgeErr) {
		return bridgeErr.Code
	}

	return ""
}
