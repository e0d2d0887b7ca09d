package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Sentinels for account-domain failures, so callers can branch with errors.Is
// instead of matching codes.
var (
	ErrInvalidOTP       = errors.New("invalid otp")
	ErrOTPExpired       = errors.New("otp expired")
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrWrongPassword    = errors.New("wrong password")
	ErrNotConfirmed     = errors.New("account not confirmed")
	ErrDeactivated      = errors.New("account deactivated")
)

// AppError represents a structured application error with HTTP status mapping.
// An AppError is an expected domain failure; anything else surfaces as a 500
// at the HTTP boundary.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
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

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// DuplicateEmail creates a 409 error for signup with an email that is
// already registered.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: fmt.Sprintf("an account with email %q already exists", email),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// EmailInUse creates a 409 error for an email change to an address that is
// already registered.
func EmailInUse(email string) *AppError {
	return &AppError{
		Code:    "EMAIL_IN_USE",
		Message: fmt.Sprintf("email %q is already in use", email),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// PasswordMismatch creates a 400 error for password/confirmation pairs that
// do not match.
func PasswordMismatch() *AppError {
	return &AppError{
		Code:    "PASSWORD_MISMATCH",
		Message: "passwords do not match",
		Status:  http.StatusBadRequest,
		Err:     ErrPasswordMismatch,
	}
}

// WrongPassword creates a 400 error for a password change with an incorrect
// current password.
func WrongPassword() *AppError {
	return &AppError{
		Code:    "WRONG_PASSWORD",
		Message: "current password is incorrect",
		Status:  http.StatusBadRequest,
		Err:     ErrWrongPassword,
	}
}

// InvalidOTP creates a 400 error for a one-time code that does not match.
func InvalidOTP() *AppError {
	return &AppError{
		Code:    "INVALID_OTP",
		Message: "invalid one-time code",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidOTP,
	}
}

// OTPExpired creates a 400 error for a one-time code past its expiry.
func OTPExpired() *AppError {
	return &AppError{
		Code:    "OTP_EXPIRED",
		Message: "one-time code expired, please request a new one",
		Status:  http.StatusBadRequest,
		Err:     ErrOTPExpired,
	}
}

// NotConfirmed creates a 400 error for sign-in attempts on accounts that
// have not confirmed their email yet.
func NotConfirmed() *AppError {
	return &AppError{
		Code:    "NOT_CONFIRMED",
		Message: "please confirm your email first",
		Status:  http.StatusBadRequest,
		Err:     ErrNotConfirmed,
	}
}

// Deactivated creates a 403 error for operations on a deactivated account.
func Deactivated() *AppError {
	return &AppError{
		Code:    "ACCOUNT_DEACTIVATED",
		Message: "account is deactivated, please reactivate it first",
		Status:  http.StatusForbidden,
		Err:     ErrDeactivated,
	}
}

// ProviderMismatch creates a 403 error for federated sign-in against an
// account registered with a different provider.
func ProviderMismatch(provider string) *AppError {
	return &AppError{
		Code:    "PROVIDER_MISMATCH",
		Message: fmt.Sprintf("please sign in with %s", provider),
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// MissingTokenClaims creates a 400 error for tokens missing the claims an
// operation needs.
func MissingTokenClaims() *AppError {
	return &AppError{
		Code:    "MISSING_TOKEN_CLAIMS",
		Message: "token is missing required claims",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// ProviderUnavailable creates a 503 error for federated sign-in when the
// identity provider integration is not configured.
func ProviderUnavailable() *AppError {
	return &AppError{
		Code:    "PROVIDER_UNAVAILABLE",
		Message: "federated sign-in is not available",
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
