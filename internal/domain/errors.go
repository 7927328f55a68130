package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code. The HTTP boundary maps codes to
// status + envelope; nothing above the storage layer sees raw driver errors.
type Code string

const (
	CodeInvalidCredentials   Code = "invalid_credentials"
	CodeAccountLocked        Code = "account_locked"
	CodeUnauthorized         Code = "unauthorized"
	CodeForbidden            Code = "forbidden"
	CodePermissionDenied     Code = "permission_denied"
	CodeNotFound             Code = "not_found"
	CodeConflict             Code = "conflict"
	CodeDuplicateEmail       Code = "duplicate_email"
	CodeDuplicateSlug        Code = "duplicate_slug"
	CodeDuplicateRoleName    Code = "duplicate_role_name"
	CodeTokenInvalid         Code = "token_invalid"
	CodeTokenExpired         Code = "token_expired"
	CodeTokenRevoked         Code = "token_revoked"
	CodeTokenAlreadyUsed     Code = "token_already_used"
	CodeAPIKeyExpired        Code = "api_key_expired"
	CodeAPIKeyRevoked        Code = "api_key_revoked"
	CodeValidationError      Code = "validation_error"
	CodeRateLimited          Code = "rate_limited"
	CodeTenantContextMissing Code = "tenant_context_missing"
	CodeInternalError        Code = "internal_error"
	CodeProviderError        Code = "provider_error"
)

// Error is the tagged domain outcome. Business failures travel as *Error;
// plain Go errors crossing the storage boundary are wrapped as internal_error.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a key/value to the error's details map.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// E constructs a domain error.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a domain error that preserves the underlying cause for logs.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the domain code from an error chain.
// Unknown errors are reported as internal_error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternalError
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
