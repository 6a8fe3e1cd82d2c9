package apperror

import (
	"errors"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
	ErrUnprocessable      = &AppError{Code: http.StatusUnprocessableEntity, Message: "Unprocessable entity"}
	ErrTokenExpired       = &AppError{Code: http.StatusUnauthorized, Message: "Token has expired"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "Invalid token"}
)

// Quote lifecycle errors
var (
	ErrEmptyQuote        = &AppError{Code: http.StatusUnprocessableEntity, Message: "Quote has no line items"}
	ErrMissingClient     = &AppError{Code: http.StatusUnprocessableEntity, Message: "Quote has no client assigned"}
	ErrQuoteLocked       = &AppError{Code: http.StatusConflict, Message: "Quote is no longer a draft and cannot be modified"}
	ErrStaleQuoteState   = &AppError{Code: http.StatusConflict, Message: "Quote was modified by another request, reload and retry"}
	ErrInvalidTransition = &AppError{Code: http.StatusConflict, Message: "Quote status does not allow this action"}
)

// Catalog integrity errors
var (
	ErrEmptySelection      = &AppError{Code: http.StatusUnprocessableEntity, Message: "Product requires at least one item"}
	ErrReferencedByProduct = &AppError{Code: http.StatusConflict, Message: "Item is referenced by an active product and cannot be deleted"}
)

// Billing errors
var (
	ErrCurrencyMismatch    = &AppError{Code: http.StatusUnprocessableEntity, Message: "Amounts are in different currencies"}
	ErrAlreadyCaptured     = &AppError{Code: http.StatusConflict, Message: "Payment was already captured"}
	ErrPaymentNotPending   = &AppError{Code: http.StatusConflict, Message: "Payment is not in a capturable state"}
	ErrInvalidSignature    = &AppError{Code: http.StatusBadRequest, Message: "Webhook signature verification failed"}
	ErrClientNotFound      = &AppError{Code: http.StatusNotFound, Message: "Client not found"}
	ErrProviderDisabled    = &AppError{Code: http.StatusUnprocessableEntity, Message: "Payment provider is not enabled for this tenant"}
	ErrProviderUnavailable = &AppError{Code: http.StatusBadGateway, Message: "Payment provider request failed"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewConflictError creates a conflict error with a custom message
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
