package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable class of a failure. Clients branch on it;
// Code narrows it down.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindInstrument        ErrorKind = "INSTRUMENT_ERROR"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindConflict          ErrorKind = "CONFLICT"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindUnavailable       ErrorKind = "UNAVAILABLE"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// AppError is returned by every service operation that fails.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped or re-messaged errors still compare equal to
// the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy with err attached as the cause.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindInstrument:
		return http.StatusPaymentRequired
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

var (
	ErrSelfTransfer        = newError(KindValidation, "SELF_TRANSFER", "Cannot transfer money to yourself")
	ErrAmountInvalid       = newError(KindValidation, "AMOUNT_INVALID", "Amount must be greater than zero with at most two decimal places")
	ErrModeMismatch        = newError(KindValidation, "MODE_MISMATCH", "Live-mode accounts cannot send money to test-mode accounts")
	ErrTestModeOnly        = newError(KindValidation, "TEST_MODE_ONLY", "Simulated card payments are only available to test-mode accounts")
	ErrInvalidRequest      = newError(KindValidation, "INVALID_REQUEST", "Invalid request")
	ErrInvalidCursor       = newError(KindValidation, "INVALID_CURSOR", "Invalid pagination cursor")
	ErrReceiverNotFound    = newError(KindNotFound, "RECEIVER_NOT_FOUND", "Receiver not found")
	ErrAccountNotFound     = newError(KindNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	ErrTxNotFound          = newError(KindNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
	ErrInsufficientFunds   = newError(KindInsufficientFunds, "INSUFFICIENT_FUNDS", "Insufficient funds")
	ErrInstrumentRequired  = newError(KindInstrument, "INSTRUMENT_REQUIRED", "Card details are required for live-mode transfers")
	ErrInvalidInstrument   = newError(KindInstrument, "INVALID_INSTRUMENT", "Invalid card details")
	ErrProcessorDeclined   = newError(KindInstrument, "PROCESSOR_DECLINED", "Card was declined")
	ErrUnauthorized        = newError(KindUnauthorized, "UNAUTHORIZED", "Unauthorized")
	ErrIdempotencyConflict = newError(KindConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key was already used for a different request")
	ErrDuplicateUser       = newError(KindConflict, "DUPLICATE_USER", "Username or email already exists")
	ErrTimeout             = newError(KindTimeout, "TIMEOUT", "The operation timed out; it may still have completed, retry with the same idempotency key")
	ErrUnavailable         = newError(KindUnavailable, "UNAVAILABLE", "A dependency is temporarily unavailable")
	ErrInternal            = newError(KindInternal, "INTERNAL_ERROR", "An internal error occurred")
)

// AsAppError converts any error into an AppError. Store and context failures
// become TIMEOUT or INTERNAL_ERROR with the cause attached.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.Wrap(err)
	case errors.Is(err, context.Canceled):
		return ErrUnavailable.WithMessage("Request was cancelled").Wrap(err)
	case errors.Is(err, sql.ErrConnDone):
		return ErrUnavailable.Wrap(err)
	default:
		return ErrInternal.Wrap(err)
	}
}

// ErrorKindOf is a convenience for tests and logging.
func ErrorKindOf(err error) ErrorKind {
	return AsAppError(err).Kind
}
