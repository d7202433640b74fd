package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/elitehs/auth-service/internal/domain"
	"github.com/elitehs/auth-service/pkg/database"
	apperrors "github.com/elitehs/auth-service/pkg/errors"
)

// queryTimeout bounds every store operation so a stalled database surfaces as
// Unavailable instead of hanging request handlers.
const queryTimeout = 3 * time.Second

const userColumns = `id, email, password_hash, role, is_verified, is_blocked, is_deleted,
	registration_otp, registration_otp_expires_at, registration_otp_attempts,
	reset_otp, reset_otp_expires_at, reset_otp_attempts,
	refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// CreateCustomerAccount inserts the user, customer profile, and optional
// address in one transaction.
func (r *UserRepository) CreateCustomerAccount(ctx context.Context, u *domain.User, c *domain.Customer, a *domain.Address) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO customers (id, user_id, customer_code, first_name, last_name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.CustomerCode, c.FirstName, c.LastName, c.Email, c.Phone, c.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("Customer already exists")
		}
		return storeErr("insert customer", err)
	}

	if a != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO customer_addresses (id, customer_id, address_line, apartment, city, state, zip)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, a.CustomerID, a.AddressLine, a.Apartment, a.City, a.State, a.Zip,
		)
		if err != nil {
			return storeErr("insert customer address", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit transaction", err)
	}

	return nil
}

// CreateTechnicianAccount inserts the user and technician profile in one transaction.
func (r *UserRepository) CreateTechnicianAccount(ctx context.Context, u *domain.User, tech *domain.Technician) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO technicians (id, user_id, name, email, phone, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tech.ID, tech.UserID, tech.Name, tech.Email, tech.Phone, tech.IsVerified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("Technician already exists")
		}
		return storeErr("insert technician", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit transaction", err)
	}

	return nil
}

func insertUser(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, is_verified, is_blocked, is_deleted,
			registration_otp, registration_otp_expires_at, registration_otp_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsVerified, u.IsBlocked, u.IsDeleted,
		u.RegistrationOTP, u.RegistrationOTPExpiresAt, u.RegistrationOTPAttempts, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("User already exists")
		}
		return storeErr("insert user", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanUser(ctx, query, email)
}

// GetByRefreshTokenHash retrieves the user holding the given session credential.
func (r *UserRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token_hash = $1`
	return r.scanUser(ctx, query, hash)
}

// SetRegistrationOTP replaces the registration challenge and resets attempts.
func (r *UserRepository) SetRegistrationOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET registration_otp = $2, registration_otp_expires_at = $3, registration_otp_attempts = 0, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set registration otp", apperrors.ErrNotFound, query, userID, code, expiresAt)
}

// IncrementRegistrationOTPAttempts bumps the attempt counter, saturating at
// the ceiling. Losing the race past the ceiling is not an error.
func (r *UserRepository) IncrementRegistrationOTPAttempts(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET registration_otp_attempts = registration_otp_attempts + 1, updated_at = NOW()
		WHERE id = $1 AND registration_otp_attempts < 5`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return storeErr("increment registration otp attempts", err)
	}
	return nil
}

// MarkVerified flips the account to verified and clears the challenge,
// conditional on the stored code. A zero-row result means the code was already
// consumed or replaced.
func (r *UserRepository) MarkVerified(ctx context.Context, userID, code string) error {
	query := `
		UPDATE users
		SET is_verified = true, registration_otp = NULL, registration_otp_expires_at = NULL,
		    registration_otp_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND registration_otp = $2`

	return r.execExpectingRow(ctx, "mark verified", apperrors.ErrConflict, query, userID, code)
}

// SetResetOTP replaces the password-reset challenge and resets attempts.
func (r *UserRepository) SetResetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_otp = $2, reset_otp_expires_at = $3, reset_otp_attempts = 0, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set reset otp", apperrors.ErrNotFound, query, userID, code, expiresAt)
}

// IncrementResetOTPAttempts bumps the reset attempt counter, saturating at the ceiling.
func (r *UserRepository) IncrementResetOTPAttempts(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET reset_otp_attempts = reset_otp_attempts + 1, updated_at = NOW()
		WHERE id = $1 AND reset_otp_attempts < 5`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return storeErr("increment reset otp attempts", err)
	}
	return nil
}

// ResetPassword swaps the password hash, clears the reset challenge, and
// revokes the active session, conditional on the stored code.
func (r *UserRepository) ResetPassword(ctx context.Context, userID, code, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $3, reset_otp = NULL, reset_otp_expires_at = NULL, reset_otp_attempts = 0,
		    refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND reset_otp = $2`

	return r.execExpectingRow(ctx, "reset password", apperrors.ErrConflict, query, userID, code, passwordHash)
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execExpectingRow(ctx, "update password", apperrors.ErrNotFound, query, userID, passwordHash)
}

// SetRefreshToken installs a new session credential, displacing any previous one.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID, hash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set refresh token", apperrors.ErrNotFound, query, userID, hash, expiresAt)
}

// RotateRefreshToken swaps the session credential, conditional on the old hash
// still being current. Concurrent rotations resolve to one winner; losers get
// ErrConflict.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token_hash = $3, refresh_token_expires_at = $4, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2`

	return r.execExpectingRow(ctx, "rotate refresh token", apperrors.ErrConflict, query, userID, oldHash, newHash, expiresAt)
}

// execExpectingRow runs an update that must affect exactly one row, returning
// missErr when the guard matched nothing.
func (r *UserRepository) execExpectingRow(ctx context.Context, op string, missErr error, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storeErr(op, err)
	}
	if ct.RowsAffected() == 0 {
		return missErr
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u domain.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsVerified,
		&u.IsBlocked,
		&u.IsDeleted,
		&u.RegistrationOTP,
		&u.RegistrationOTPExpiresAt,
		&u.RegistrationOTPAttempts,
		&u.ResetOTP,
		&u.ResetOTPExpiresAt,
		&u.ResetOTPAttempts,
		&u.RefreshTokenHash,
		&u.RefreshTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, storeErr("scan user", err)
	}

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// storeErr classifies a pgx error: deadline expiry and transport failures
// become Unavailable so callers can distinguish a down store from bad input.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
