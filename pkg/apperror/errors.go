package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Resource access (RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrNotOwner(entity string) *AppError {
	return New("RES_002", fmt.Sprintf("caller does not own this %s", entity), http.StatusForbidden)
}

func ErrForbidden() *AppError {
	return New("RES_003", "caller is not a party to this resource", http.StatusForbidden)
}

// ---- Ledger (LED) ----

// ErrInsufficientFunds reports the exact shortfall so callers can surface it.
func ErrInsufficientFunds(required, available int64) *AppError {
	return New("LED_001",
		fmt.Sprintf("insufficient credits: required %d, available %d", required, available),
		http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "amount must be a positive integer", http.StatusBadRequest)
}

func ErrNegativeTarget() *AppError {
	return New("LED_003", "target balance must not be negative", http.StatusBadRequest)
}

// ---- Inventory (INV) ----

func ErrEncumbered(entity string) *AppError {
	return New("INV_001", fmt.Sprintf("%s is locked by an active listing or pending trade", entity), http.StatusConflict)
}

func ErrCardDestroyed() *AppError {
	return New("INV_002", "card no longer exists", http.StatusConflict)
}

// ---- Marketplace (MKT) ----

func ErrMarketplaceDisabled() *AppError {
	return New("MKT_001", "marketplace is currently disabled", http.StatusServiceUnavailable)
}

func ErrSelfPurchase() *AppError {
	return New("MKT_002", "cannot buy your own listing", http.StatusBadRequest)
}

// ---- Trades (TRD) ----

func ErrInvalidState(detail string) *AppError {
	return New("TRD_001", detail, http.StatusConflict)
}

func ErrEmptyTradeSide() *AppError {
	return New("TRD_002", "each side must offer at least one card or a credit amount", http.StatusBadRequest)
}

// ---- Rollback (RBK) ----

func ErrNoSnapshot() *AppError {
	return New("RBK_001", "no rollback snapshot available for this user", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "invalid or expired token", http.StatusUnauthorized)
}

func ErrAdminRequired() *AppError {
	return New("AUTH_004", "administrator privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
