package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elitehs/auth-service/internal/auth"
	"github.com/elitehs/auth-service/internal/domain"
	"github.com/elitehs/auth-service/internal/event"
	"github.com/elitehs/auth-service/internal/mailer"
	"github.com/elitehs/auth-service/internal/otp"
	"github.com/elitehs/auth-service/internal/password"
	"github.com/elitehs/auth-service/internal/repository"
	apperrors "github.com/elitehs/auth-service/pkg/errors"
)

// OTP challenge kinds, used for resend throttling keys.
const (
	otpKindRegistration = "registration"
	otpKindReset        = "reset"
)

// AuthService implements the credential and session lifecycle: OTP-confirmed
// signup, login, password reset, password change, and refresh rotation.
type AuthService struct {
	repo       repository.UserRepository
	jwt        *auth.JWTManager
	mailer     mailer.Mailer
	events     *event.Producer
	cooldown   *otp.Cooldown
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService creates the lifecycle service.
func NewAuthService(
	repo repository.UserRepository,
	jwtManager *auth.JWTManager,
	m mailer.Mailer,
	events *event.Producer,
	cooldown *otp.Cooldown,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		repo:       repo,
		jwt:        jwtManager,
		mailer:     m,
		events:     events,
		cooldown:   cooldown,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// SignupInput carries a customer registration request.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   AddressInput
}

// AddressInput is the customer's service address captured at signup.
type AddressInput struct {
	AddressLine string
	Apartment   string
	City        string
	State       string
	Zip         string
}

// SignupTechnicianInput carries a technician registration request.
type SignupTechnicianInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Signup registers a customer account. The account starts unverified with a
// registration code outstanding; the user, profile, and address commit in one
// transaction, and the OTP email goes out only after that commit.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return s.signupExisting(ctx, existing)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	challenge, err := otp.Generate(time.Now().UTC())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:                       uuid.New().String(),
		Email:                    email,
		PasswordHash:             hash,
		Role:                     domain.RoleCustomer,
		RegistrationOTP:          &challenge.Code,
		RegistrationOTPExpiresAt: &challenge.ExpiresAt,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	code, err := generateCustomerCode()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	c := &domain.Customer{
		ID:           uuid.New().String(),
		UserID:       u.ID,
		CustomerCode: code,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		Phone:        in.Phone,
		Status:       domain.CustomerStatusActive,
	}

	a := &domain.Address{
		ID:          uuid.New().String(),
		CustomerID:  c.ID,
		AddressLine: in.Address.AddressLine,
		Apartment:   in.Address.Apartment,
		City:        in.Address.City,
		State:       in.Address.State,
		Zip:         in.Address.Zip,
	}

	if err := s.repo.CreateCustomerAccount(ctx, u, c, a); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "customer account created",
		slog.String("user_id", u.ID),
		slog.String("customer_code", c.CustomerCode),
	)

	s.sendOTPEmail(ctx, otpKindRegistration, email, challenge.Code)
	s.publish(ctx, func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, u.ID, u.Email, u.Role)
	})

	return u, nil
}

// SignupTechnician registers a technician account. The technician profile is
// vetted by operations staff and starts verified, but the account itself must
// still confirm its email through the registration challenge.
func (s *AuthService) SignupTechnician(ctx context.Context, in SignupTechnicianInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return s.signupExisting(ctx, existing)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	challenge, err := otp.Generate(time.Now().UTC())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:                       uuid.New().String(),
		Email:                    email,
		PasswordHash:             hash,
		Role:                     domain.RoleTechnician,
		RegistrationOTP:          &challenge.Code,
		RegistrationOTPExpiresAt: &challenge.ExpiresAt,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	tech := &domain.Technician{
		ID:         uuid.New().String(),
		UserID:     u.ID,
		Name:       in.Name,
		Email:      email,
		Phone:      in.Phone,
		IsVerified: true,
	}

	if err := s.repo.CreateTechnicianAccount(ctx, u, tech); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "technician account created", slog.String("user_id", u.ID))

	s.sendOTPEmail(ctx, otpKindRegistration, email, challenge.Code)
	s.publish(ctx, func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, u.ID, u.Email, u.Role)
	})

	return u, nil
}

// signupExisting resolves a signup against an account that already exists.
// Verified accounts conflict; unverified ones get a fresh registration
// challenge so signup stays idempotent until the email is confirmed.
func (s *AuthService) signupExisting(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := accountGate(u); err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, apperrors.Conflict("User already exists")
	}

	if !s.cooldown.Allow(ctx, otpKindRegistration, u.Email) {
		return nil, apperrors.Conflict("OTP was sent recently. Please wait before requesting another.")
	}

	challenge, err := otp.Generate(time.Now().UTC())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.SetRegistrationOTP(ctx, u.ID, challenge.Code, challenge.ExpiresAt); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.InfoContext(ctx, "registration challenge reissued for unverified signup",
		slog.String("user_id", u.ID),
	)

	s.sendOTPEmail(ctx, otpKindRegistration, u.Email, challenge.Code)
	return u, nil
}

// ResendRegistrationOTP issues a fresh registration code, replacing any
// outstanding one and resetting the attempt counter.
func (s *AuthService) ResendRegistrationOTP(ctx context.Context, email string) error {
	u, err := s.getGatedByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return apperrors.Conflict("User is already verified")
	}

	if !s.cooldown.Allow(ctx, otpKindRegistration, u.Email) {
		return apperrors.Conflict("OTP was sent recently. Please wait before requesting another.")
	}

	challenge, err := otp.Generate(time.Now().UTC())
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.repo.SetRegistrationOTP(ctx, u.ID, challenge.Code, challenge.ExpiresAt); err != nil {
		return s.mapStoreErr(err)
	}

	s.sendOTPEmail(ctx, otpKindRegistration, u.Email, challenge.Code)
	return nil
}

// VerifyRegistrationOTP confirms the account. The final flip is conditional on
// the stored code, so a code can be consumed at most once.
func (s *AuthService) VerifyRegistrationOTP(ctx context.Context, email, code string) error {
	u, err := s.getGatedByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return apperrors.Conflict("User is already verified")
	}

	if err := s.checkOTP(ctx, u, registrationChallenge(u), code, otpKindRegistration); err != nil {
		return err
	}

	if err := s.repo.MarkVerified(ctx, u.ID, code); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Lost the race: the code was consumed or replaced after our check.
			return apperrors.Conflict("OTP expired. Please resend OTP.")
		}
		return err
	}

	s.logger.InfoContext(ctx, "user verified", slog.String("user_id", u.ID))

	s.publish(ctx, func(ctx context.Context) error {
		return s.events.PublishUserVerified(ctx, u.ID, u.Email)
	})

	return nil
}

// Login verifies credentials and opens a session, displacing any previous
// refresh credential.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (*domain.TokenPair, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	// The verification check precedes the block/delete gates here: an
	// unconfirmed address is told to verify regardless of account state.
	if !u.IsVerified {
		return nil, apperrors.Conflict("User is not verified")
	}
	if err := accountGate(u); err != nil {
		return nil, err
	}

	if !password.Verify(plaintext, u.PasswordHash) {
		return nil, apperrors.Unauthorized("Invalid password")
	}

	pair, refreshHash, expiresAt, err := s.mintTokenPair(u)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetRefreshToken(ctx, u.ID, refreshHash, expiresAt); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", u.ID))
	return pair, nil
}

// ForgotPassword issues a password reset code to the account's email. Only
// verified accounts can start a reset; an unconfirmed address must finish
// registration first.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.getGatedByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.IsVerified {
		return apperrors.Conflict("User not verified. Please verify first.")
	}

	if !s.cooldown.Allow(ctx, otpKindReset, u.Email) {
		return apperrors.Conflict("OTP was sent recently. Please wait before requesting another.")
	}

	challenge, err := otp.Generate(time.Now().UTC())
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.repo.SetResetOTP(ctx, u.ID, challenge.Code, challenge.ExpiresAt); err != nil {
		return s.mapStoreErr(err)
	}

	s.sendOTPEmail(ctx, otpKindReset, u.Email, challenge.Code)
	return nil
}

// ResendForgotPasswordOTP reissues the reset code; the fresh challenge
// replaces the old one and resets the attempt counter.
func (s *AuthService) ResendForgotPasswordOTP(ctx context.Context, email string) error {
	return s.ForgotPassword(ctx, email)
}

// ResetPassword swaps the password after validating the reset code. The swap
// also revokes the active session, so stolen refresh tokens die with the old
// password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	u, err := s.getGatedByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkOTP(ctx, u, resetChallenge(u), code, otpKindReset); err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.repo.ResetPassword(ctx, u.ID, code, hash); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.Conflict("OTP expired. Please resend OTP.")
		}
		return err
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", u.ID))

	s.publish(ctx, func(ctx context.Context) error {
		return s.events.PublishUserPasswordReset(ctx, u.ID, u.Email)
	})

	return nil
}

// ChangePassword replaces the password for an authenticated user after
// re-verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return s.mapStoreErr(err)
	}
	if err := accountGate(u); err != nil {
		return err
	}

	if !password.Verify(oldPassword, u.PasswordHash) {
		return apperrors.Unauthorized("Old password is incorrect")
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return s.mapStoreErr(err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", u.ID))
	return nil
}

// RefreshToken rotates the session credential. The presented token is
// single-use: rotation is conditional on it still being current, so of two
// concurrent refreshes exactly one wins and the other must re-authenticate.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	oldHash := auth.HashToken(refreshToken)

	u, err := s.repo.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("Invalid refresh token")
		}
		return nil, err
	}
	if err := accountGate(u); err != nil {
		return nil, err
	}

	if u.RefreshTokenExpiresAt == nil || time.Now().UTC().After(*u.RefreshTokenExpiresAt) {
		return nil, apperrors.Unauthorized("Refresh token expired")
	}

	pair, newHash, expiresAt, err := s.mintTokenPair(u)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RotateRefreshToken(ctx, u.ID, oldHash, newHash, expiresAt); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Unauthorized("Invalid refresh token")
		}
		return nil, err
	}

	return pair, nil
}

// ValidateAccessToken verifies a bearer token for the HTTP middleware.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// getGatedByEmail loads the account and applies the shared gate order:
// missing, blocked, deleted.
func (s *AuthService) getGatedByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if err := accountGate(u); err != nil {
		return nil, err
	}
	return u, nil
}

func accountGate(u *domain.User) error {
	if u.IsBlocked {
		return apperrors.Conflict("User is blocked")
	}
	if u.IsDeleted {
		return apperrors.Conflict("User is deleted")
	}
	return nil
}

// checkOTP validates a submitted code against the user's outstanding
// challenge, persisting the attempt increment on a mismatch.
func (s *AuthService) checkOTP(ctx context.Context, u *domain.User, ch otp.Challenge, submitted, kind string) error {
	switch err := otp.Check(ch, submitted, time.Now().UTC()); {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return apperrors.Forbidden("Too many OTP attempts. Please resend OTP.")
	case errors.Is(err, otp.ErrExpired):
		return apperrors.Conflict("OTP expired. Please resend OTP.")
	default:
		s.recordFailedAttempt(ctx, u.ID, kind)
		return apperrors.Conflict("Invalid OTP")
	}
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, userID, kind string) {
	var err error
	if kind == otpKindReset {
		err = s.repo.IncrementResetOTPAttempts(ctx, userID)
	} else {
		err = s.repo.IncrementRegistrationOTPAttempts(ctx, userID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record otp attempt",
			slog.String("user_id", userID),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// mintTokenPair issues an access token and a fresh opaque refresh token,
// returning the refresh hash and expiry for storage.
func (s *AuthService) mintTokenPair(u *domain.User) (*domain.TokenPair, string, time.Time, error) {
	accessToken, err := s.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.Internal(err)
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, "", time.Time{}, apperrors.Internal(err)
	}

	pair := &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	return pair, auth.HashToken(refreshToken), time.Now().UTC().Add(s.refreshTTL), nil
}

// sendOTPEmail delivers the code after the owning transaction committed.
// Delivery failure is logged, never surfaced: the user can always resend.
func (s *AuthService) sendOTPEmail(ctx context.Context, kind, email, code string) {
	var err error
	if kind == otpKindReset {
		err = s.mailer.SendPasswordResetOTP(ctx, email, code)
	} else {
		err = s.mailer.SendRegistrationOTP(ctx, email, code)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send otp email",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits a lifecycle event after commit; failures are logged only.
func (s *AuthService) publish(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			slog.String("error", err.Error()),
		)
	}
}

// mapStoreErr gives the bare repository sentinels user-facing messages.
func (s *AuthService) mapStoreErr(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			return apperrors.NotFound("User not found")
		}
	}
	return err
}

func registrationChallenge(u *domain.User) otp.Challenge {
	ch := otp.Challenge{Attempts: u.RegistrationOTPAttempts}
	if u.RegistrationOTP != nil {
		ch.Code = *u.RegistrationOTP
	}
	if u.RegistrationOTPExpiresAt != nil {
		ch.ExpiresAt = *u.RegistrationOTPExpiresAt
	}
	return ch
}

func resetChallenge(u *domain.User) otp.Challenge {
	ch := otp.Challenge{Attempts: u.ResetOTPAttempts}
	if u.ResetOTP != nil {
		ch.Code = *u.ResetOTP
	}
	if u.ResetOTPExpiresAt != nil {
		ch.ExpiresAt = *u.ResetOTPExpiresAt
	}
	return ch
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCustomerCode builds a "CUST-" prefixed code with 6 uppercase hex
// characters.
func generateCustomerCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate customer code: %w", err)
	}
	return "CUST-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
