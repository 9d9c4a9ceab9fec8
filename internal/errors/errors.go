// Package errors provides custom error types for the Pulpe API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Budget period errors.
var (
	ErrBudgetPeriodNotFound = &AppError{Code: "BUDGET_PERIOD_NOT_FOUND", Message: "Budget period not found", StatusCode: http.StatusNotFound}
	ErrDuplicatePeriod      = &AppError{Code: "DUPLICATE_PERIOD", Message: "A budget period already exists for this month", StatusCode: http.StatusConflict}
)

// Envelope errors.
var (
	ErrEnvelopeNotFound  = &AppError{Code: "ENVELOPE_NOT_FOUND", Message: "Envelope not found", StatusCode: http.StatusNotFound}
	ErrRolloverImmutable = &AppError{Code: "ROLLOVER_IMMUTABLE", Message: "The rollover envelope cannot be modified", StatusCode: http.StatusUnprocessableEntity}
)

// Transaction errors.
var (
	ErrTransactionNotFound   = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrEnvelopeOutsidePeriod = &AppError{Code: "ENVELOPE_OUTSIDE_PERIOD", Message: "The envelope does not belong to the transaction's period", StatusCode: http.StatusUnprocessableEntity}
)

// Consistency errors. These are never retried automatically.
var (
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "The request would break budget consistency", StatusCode: http.StatusUnprocessableEntity}
	ErrPendingIdentifier  = &AppError{Code: "PENDING_IDENTIFIER", Message: "The item is still being saved", StatusCode: http.StatusConflict}
	ErrSyncFailure        = &AppError{Code: "SYNC_FAILURE", Message: "Changes could not be saved and were reverted", StatusCode: http.StatusBadGateway}
)
