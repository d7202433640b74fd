package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_SentinelMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		status   int
		code     string
	}{
		{"not found", NotFound("user not found"), ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", Conflict("email already registered"), ErrConflict, http.StatusConflict, "CONFLICT"},
		{"invalid input", InvalidInput("email is required"), ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"unauthorized", Unauthorized("invalid password"), ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", Forbidden("too many attempts"), ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unavailable", Unavailable(errors.New("dial tcp: refused")), ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("load account: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestHTTPStatus_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("verify otp: %w", Forbidden("too many OTP attempts"))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestUnavailable_PreservesCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := Unavailable(cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
}
