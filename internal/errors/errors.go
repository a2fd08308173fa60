package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so a wrapped copy still satisfies errors.Is against the
// predefined sentinel it was built from.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Predefined domain errors
var (
	// Input errors
	ErrValidation = NewDomainError("VALIDATION_ERROR", "invalid input")

	// Account errors
	ErrUserNotFound         = NewDomainError("USER_NOT_FOUND", "user not found")
	ErrInvalidCredentials   = NewDomainError("INVALID_CREDENTIALS", "invalid credentials")
	ErrAccountLocked        = NewDomainError("ACCOUNT_LOCKED", "account is temporarily locked due to too many failed login attempts")
	ErrAccountDeactivated   = NewDomainError("ACCOUNT_DEACTIVATED", "account is deactivated")
	ErrIncorrectPassword    = NewDomainError("INCORRECT_PASSWORD", "current password is incorrect")
	ErrEmailAlreadyVerified = NewDomainError("EMAIL_ALREADY_VERIFIED", "email is already verified")

	// Session token errors
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "not authorized, no token")
	ErrTokenExpired = NewDomainError("TOKEN_EXPIRED", "token expired")
	ErrTokenInvalid = NewDomainError("TOKEN_INVALID", "token invalid")
	ErrForbidden    = NewDomainError("FORBIDDEN", "not authorized to access this route")

	// Single-use token errors
	ErrInvalidOrExpiredToken = NewDomainError("INVALID_OR_EXPIRED_TOKEN", "invalid or expired token")
	ErrInvalidToken          = NewDomainError("INVALID_TOKEN", "invalid verification token")

	// Throttling
	ErrRateLimitExceeded = NewDomainError("RATE_LIMIT_EXCEEDED", "too many requests, please try again later")

	// System errors
	ErrStorage        = NewDomainError("STORAGE_ERROR", "internal server error")
	ErrDeliveryFailed = NewDomainError("DELIVERY_FAILED", "email could not be sent")
	ErrInternal       = NewDomainError("INTERNAL_ERROR", "internal server error")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "VALIDATION_ERROR", "INVALID_OR_EXPIRED_TOKEN", "INVALID_TOKEN", "EMAIL_ALREADY_VERIFIED":
		return http.StatusBadRequest

	// 401 Unauthorized
	case "UNAUTHORIZED", "INVALID_CREDENTIALS", "TOKEN_INVALID", "TOKEN_EXPIRED",
		"INCORRECT_PASSWORD", "ACCOUNT_DEACTIVATED":
		return http.StatusUnauthorized

	// 403 Forbidden
	case "FORBIDDEN":
		return http.StatusForbidden

	// 404 Not Found
	case "USER_NOT_FOUND":
		return http.StatusNotFound

	// 423 Locked
	case "ACCOUNT_LOCKED":
		return http.StatusLocked

	// 429 Too Many Requests
	case "RATE_LIMIT_EXCEEDED":
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage returns a message safe to show to clients. Wrapped causes
// are never included, so driver or SMTP errors do not leak.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return ErrInternal.Message
}

// GetErrorCode returns the domain code, or INTERNAL_ERROR for foreign errors.
func GetErrorCode(err error) string {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ErrInternal.Code
}
