package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthError_Is(t *testing.T) {
	t.Parallel()

	described := ErrMissingParam.WithDescription("Missing parameter: %s", "user")
	require.ErrorIs(t, described, ErrMissingParam)
	require.NotErrorIs(t, described, ErrForbidden)
	require.Equal(t, "Missing parameter: user", described.Description)
	require.Equal(t, "Missing parameter", ErrMissingParam.Description)

	wrapped := fmt.Errorf("check stage: %w", described)
	require.ErrorIs(t, wrapped, ErrMissingParam)

	var authErr *AuthError
	require.True(t, errors.As(wrapped, &authErr))
	require.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	require.Equal(t, CodeMissingParam, authErr.Code)
}

func TestAuthError_Codes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    *AuthError
		status int
		code   string
	}{
		{ErrUnrecognizedStage, http.StatusBadRequest, CodeUnrecognized},
		{ErrCaptchaNeeded, http.StatusBadRequest, CodeCaptchaNeeded},
		{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{ErrForbidden, http.StatusForbidden, CodeForbidden},
		{ErrInvalidToken, http.StatusForbidden, CodeForbidden},
		{ErrLimitExceeded, http.StatusTooManyRequests, CodeLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.Equal(t, tt.status, tt.err.StatusCode)
			require.Equal(t, tt.code, tt.err.Code)
		})
	}

	// Same code, different kinds.
	require.NotErrorIs(t, ErrInvalidToken, ErrForbidden)
}
