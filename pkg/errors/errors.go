package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrUnprocessable      = errors.New("unprocessable")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrRateLimited        = errors.New("rate limited")
)

// AppError represents an application error with a stable machine-readable
// code the client can switch on.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// BadRequestWithCode creates a 400 error with a domain-specific code
// (e.g. CANNOT_CANCEL, INVALID_TRANSITION).
func BadRequestWithCode(code, message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// ConflictWithCode creates a conflict error with a domain-specific code
// (e.g. APPOINTMENT_CONFLICT, PATIENT_EXISTS).
func ConflictWithCode(code, message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Unprocessable creates a 422 business-rule violation error
func Unprocessable(code, message string) *AppError {
	return &AppError{
		Err:        ErrUnprocessable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:        ErrInvalidCredentials,
		Code:       "INVALID_CREDENTIALS",
		Message:    "invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}
}

// NoToken is returned when a guarded route is hit without a bearer token
func NoToken() *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "NO_TOKEN",
		Message:    "missing authorization token",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "INVALID_TOKEN",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// NoTenantContext is returned when a tenant-scoped route is hit before any
// tenant id was resolved onto the request.
func NoTenantContext() *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "NO_TENANT_CONTEXT",
		Message:    "no tenant context",
		StatusCode: http.StatusForbidden,
	}
}

// TenantAccessDenied is returned when the identity's tenant does not match
// the resource tenant and the identity is not a super admin.
func TenantAccessDenied() *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "TENANT_ACCESS_DENIED",
		Message:    "tenant access denied",
		StatusCode: http.StatusForbidden,
	}
}

// InsufficientPermissions is returned when the identity's role is not in the
// allow-list for the requested operation. The required and actual roles are
// attached as error detail so the client can display them.
func InsufficientPermissions(required []string, actual string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "INSUFFICIENT_PERMISSIONS",
		Message:    "insufficient permissions",
		StatusCode: http.StatusForbidden,
		Details: map[string]string{
			"requiredRoles": strings.Join(required, ","),
			"userRole":      actual,
		},
	}
}

func RateLimited(retryAfter string) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "too many requests",
		StatusCode: http.StatusTooManyRequests,
		Details:    map[string]string{"retryAfter": retryAfter},
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
