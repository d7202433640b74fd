package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Otp      string `validate:"omitempty,len=5,numeric"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(signupForm{Email: "a@x.com", Password: "secret123", Otp: "12345"})
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(signupForm{Password: "secret123"})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, valErr.Fields(), "Email")
	assert.Equal(t, "is required", valErr.Fields()["Email"])
}

func TestValidate_BadEmailAndShortPassword(t *testing.T) {
	err := Validate(signupForm{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)
	fields := valErr.Fields()
	assert.Len(t, fields, 2)
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 8 characters", fields["Password"])
}

func TestValidate_OtpLength(t *testing.T) {
	err := Validate(signupForm{Email: "a@x.com", Password: "secret123", Otp: "123"})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, valErr.Error(), "Otp")
}
