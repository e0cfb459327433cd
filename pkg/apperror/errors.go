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

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

// ---- Ledger & Withdrawal Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateEvent() *AppError {
	return New("PAY_003", "Event already processed", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWithdrawalLimitExceeded() *AppError {
	return New("PAY_008", "Withdrawal limit exceeded", http.StatusUnprocessableEntity)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("PAY_009", fmt.Sprintf("Cannot move withdrawal from %s to %s", from, to), http.StatusConflict)
}

func ErrReasonRequired() *AppError {
	return New("PAY_010", "Rejection reason is required", http.StatusBadRequest)
}

func ErrPurchaseLimitReached() *AppError {
	return New("PAY_011", "Purchase limit reached for this product", http.StatusUnprocessableEntity)
}

func ErrProductUnavailable() *AppError {
	return New("PAY_012", "Product is not available", http.StatusUnprocessableEntity)
}

// ---- Webhook ingestion (WHK) ----

func ErrMalformedPayload(err error) *AppError {
	return Wrap("WHK_001", "Malformed webhook payload", http.StatusBadRequest, err)
}

func ErrUnresolvedAccount() *AppError {
	return New("WHK_002", "Could not resolve account for payment", http.StatusUnprocessableEntity)
}

// ---- Payout gateway (GW) ----

func ErrGateway(err error) *AppError {
	return Wrap("GW_001", "Payout gateway error", http.StatusBadGateway, err)
}

func ErrGatewayTimeout(err error) *AppError {
	return Wrap("GW_002", "Payout gateway timeout", http.StatusGatewayTimeout, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Operator role required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
