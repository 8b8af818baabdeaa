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

// ---- Callback ingest (CB) ----

func ErrMalformedCallback(err error) *AppError {
	return Wrap("CB_001", "Callback body is not a JSON object", http.StatusBadRequest, err)
}

func ErrUnknownCallbackKind(kind string) *AppError {
	return New("CB_002", fmt.Sprintf("Unknown callback kind %q", kind), http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrUsernameRequired() *AppError {
	return New("AUTH_001", "username required", http.StatusBadRequest)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Payment provider (MPESA) ----

func ErrProviderUnavailable(err error) *AppError {
	return Wrap("MPESA_001", "Payment provider request failed", http.StatusBadGateway, err)
}

func ErrProviderDisabled() *AppError {
	return New("MPESA_002", "Payment provider credentials are not configured", http.StatusServiceUnavailable)
}

// ---- System & Infrastructure (SYS) ----

func ErrPersistenceFailure(err error) *AppError {
	return Wrap("SYS_001", "Failed to persist callback", http.StatusInternalServerError, err)
}

func ErrWriteTimeout(err error) *AppError {
	return Wrap("SYS_002", "Callback store write timed out", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a 400 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ErrBodyTooLarge rejects a request body over the configured limit.
func ErrBodyTooLarge(limit int64) *AppError {
	return New("VAL_002", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}
