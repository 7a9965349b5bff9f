package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by AuthError.
const (
	CodeMissingParam  = "M_MISSING_PARAM"
	CodeUnrecognized  = "M_UNRECOGNIZED"
	CodeCaptchaNeeded = "M_CAPTCHA_NEEDED"
	CodeUnauthorized  = "M_UNAUTHORIZED"
	CodeForbidden     = "M_FORBIDDEN"
	CodeInvalidParam  = "M_INVALID_PARAM"
	CodeLimitExceeded = "M_LIMIT_EXCEEDED"
	CodeUnknown       = "M_UNKNOWN"
)

// AuthError is a client-facing failure: an HTTP status, a stable code and
// a human-readable description. Internal details never go in Description.
type AuthError struct {
	kind        string
	StatusCode  int
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on the error kind, so a sentinel copied with WithDescription
// still satisfies errors.Is against the original.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return e.kind == t.kind
}

// WithDescription returns a copy of e carrying a more specific description.
func (e *AuthError) WithDescription(format string, args ...any) *AuthError {
	c := *e
	c.Description = fmt.Sprintf(format, args...)
	return &c
}

func newAuthError(kind string, status int, code, description string) *AuthError {
	return &AuthError{kind: kind, StatusCode: status, Code: code, Description: description}
}

var (
	ErrMissingParam      = newAuthError("missing_param", http.StatusBadRequest, CodeMissingParam, "Missing parameter")
	ErrUnrecognizedStage = newAuthError("unrecognized_stage", http.StatusBadRequest, CodeUnrecognized, "Unrecognised login type")
	ErrCaptchaNeeded     = newAuthError("captcha_needed", http.StatusBadRequest, CodeCaptchaNeeded, "No captcha response supplied")
	ErrUnauthorized      = newAuthError("unauthorized", http.StatusUnauthorized, CodeUnauthorized, "Authentication failed")
	ErrForbidden         = newAuthError("forbidden", http.StatusForbidden, CodeForbidden, "Forbidden")
	ErrNonceAlreadyUsed  = newAuthError("nonce_already_used", http.StatusBadRequest, CodeUnknown, "Nonce already used")
	ErrInvalidToken      = newAuthError("invalid_token", http.StatusForbidden, CodeForbidden, "Invalid token")
	ErrInvalidRequest    = newAuthError("invalid_request", http.StatusBadRequest, CodeInvalidParam, "Invalid request")
	ErrLimitExceeded     = newAuthError("limit_exceeded", http.StatusTooManyRequests, CodeLimitExceeded, "Too many requests")
)
