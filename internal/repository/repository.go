package repository

import (
	"context"
	"time"

	"github.com/elitehs/auth-service/internal/domain"
)

// UserRepository defines persistence for accounts and their credential state.
// The conditional (compare-and-set) methods return pkg/errors.ErrConflict when
// the guarded condition no longer holds, so concurrent consumers of a code or
// refresh token resolve to exactly one winner.
type UserRepository interface {
	// CreateCustomerAccount inserts the user, customer profile, and optional
	// address in one transaction.
	CreateCustomerAccount(ctx context.Context, u *domain.User, c *domain.Customer, a *domain.Address) error
	// CreateTechnicianAccount inserts the user and technician profile in one
	// transaction.
	CreateTechnicianAccount(ctx context.Context, u *domain.User, tech *domain.Technician) error

	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error)

	// SetRegistrationOTP replaces the registration challenge and resets its
	// attempt counter.
	SetRegistrationOTP(ctx context.Context, userID, code string, expiresAt time.Time) error
	// IncrementRegistrationOTPAttempts bumps the failed-attempt counter,
	// saturating at the ceiling.
	IncrementRegistrationOTPAttempts(ctx context.Context, userID string) error
	// MarkVerified flips the account to verified and clears the challenge,
	// conditional on the stored code still matching.
	MarkVerified(ctx context.Context, userID, code string) error

	// SetResetOTP replaces the password-reset challenge and resets its
	// attempt counter.
	SetResetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error
	IncrementResetOTPAttempts(ctx context.Context, userID string) error
	// ResetPassword swaps the password hash, clears the reset challenge, and
	// revokes the active session, conditional on the stored code still
	// matching.
	ResetPassword(ctx context.Context, userID, code, passwordHash string) error

	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// SetRefreshToken installs a new session credential unconditionally (login).
	SetRefreshToken(ctx context.Context, userID, hash string, expiresAt time.Time) error
	// RotateRefreshToken swaps the session credential, conditional on the old
	// hash still being current.
	RotateRefreshToken(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error
}
