package pkgerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for transport mapping and caller branching.
// Services return coded errors; handlers translate them with ToHTTPStatus.
type Code string

const (
	// CodeValidation marks malformed input. Never retried.
	CodeValidation Code = "validation_error"
	// CodeConflict marks a business-rule violation (volume already open,
	// expired components blocking a close, operator mismatch on ownership).
	CodeConflict Code = "conflict"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeAuthorization marks a role or scope mismatch.
	CodeAuthorization Code = "authorization_error"
	// CodeRemoteSync marks regulator retries exhausted on an authoritative
	// operation. Best-effort operations swallow this and log instead.
	CodeRemoteSync Code = "remote_sync_error"
	// CodeTransactionAbort marks a maintenance cascade failure after rollback.
	CodeTransactionAbort Code = "transaction_abort"
	// CodeTimeout marks a deadline hit before the operation completed.
	CodeTimeout Code = "timeout"
	// CodeInternal is the fallback for everything else.
	CodeInternal Code = "internal_error"
)

// LedgerError is the coded error carried across service boundaries.
type LedgerError struct {
	Code    Code
	Message string
	Err     error
	// Details carries structured context for the caller, e.g. the count of
	// expired components blocking a volume close.
	Details map[string]any
}

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *LedgerError) WithDetail(key string, value any) *LedgerError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) *LedgerError {
	return &LedgerError{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *LedgerError {
	return &LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *LedgerError {
	return &LedgerError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool { return CodeOf(err) == code }

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRemoteSync:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
