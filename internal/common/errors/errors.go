package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode identifies a failure class carried across service boundaries.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// Purchase flow
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeWalletUnavailable  ErrorCode = "WALLET_UNAVAILABLE"
	ErrCodeInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodePaymentRejected    ErrorCode = "PAYMENT_REJECTED"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeTimedOut           ErrorCode = "TIMED_OUT"
	ErrCodePurchaseInFlight   ErrorCode = "PURCHASE_IN_FLIGHT"

	// External collaborators
	ErrCodeChainRPC    ErrorCode = "CHAIN_RPC_ERROR"
	ErrCodeGeneration  ErrorCode = "GENERATION_ERROR"
	ErrCodeCacheError  ErrorCode = "CACHE_ERROR"
	ErrCodeExternalAPI ErrorCode = "EXTERNAL_API_ERROR"
)

// AppError is the typed error every service returns past its boundary.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the client may usefully retry the operation.
// InsufficientFunds is deliberately excluded: a retry needs a fresh balance
// check first.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeWalletUnavailable, ErrCodePaymentRejected,
		ErrCodePersistenceFailure, ErrCodeTimedOut:
		return true
	}
	return false
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID tags the error with the originating request.
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Common constructors

func NewInvalidRequestError(reason string) *AppError {
	return New(ErrCodeInvalidRequest, fmt.Sprintf("Invalid purchase request: %s", reason)).
		WithDetail("reason", reason)
}

func NewWalletUnavailableError(err error) *AppError {
	return Wrap(err, ErrCodeWalletUnavailable, "Wallet provider unavailable")
}

func NewInsufficientFundsError(balanceCents, amountCents int64) *AppError {
	return New(ErrCodeInsufficientFunds, "Insufficient USDC balance").
		WithDetail("balance_cents", balanceCents).
		WithDetail("amount_cents", amountCents)
}

func NewPaymentRejectedError(reason string) *AppError {
	return New(ErrCodePaymentRejected, "Payment was rejected").
		WithDetail("reason", reason)
}

func NewPersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistenceFailure, fmt.Sprintf("Persistence operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewTimedOutError(operation string) *AppError {
	return New(ErrCodeTimedOut, fmt.Sprintf("Operation timed out: %s", operation)).
		WithDetail("operation", operation)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason))
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason))
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource)
}

// AsAppError extracts an AppError from err or any error it wraps.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
