package domain

import (
	"time"
)

// User represents a registered account. OTP challenges and the current
// refresh credential live on the user row itself; there is at most one
// active session per account.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	IsVerified   bool   `json:"is_verified"`
	IsBlocked    bool   `json:"is_blocked"`
	IsDeleted    bool   `json:"is_deleted"`

	RegistrationOTP          *string    `json:"-"`
	RegistrationOTPExpiresAt *time.Time `json:"-"`
	RegistrationOTPAttempts  int        `json:"-"`

	ResetOTP          *string    `json:"-"`
	ResetOTPExpiresAt *time.Time `json:"-"`
	ResetOTPAttempts  int        `json:"-"`

	RefreshTokenHash      *string    `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
