package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/elitehs/auth-service/internal/domain"
	"github.com/elitehs/auth-service/internal/service"
	"github.com/elitehs/auth-service/pkg/middleware"
	"github.com/elitehs/auth-service/pkg/validator"
)

// Service is the surface of the auth service consumed by the HTTP layer.
type Service interface {
	Signup(ctx context.Context, in service.SignupInput) (*domain.User, error)
	SignupTechnician(ctx context.Context, in service.SignupTechnicianInput) (*domain.User, error)
	ResendRegistrationOTP(ctx context.Context, email string) error
	VerifyRegistrationOTP(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResendForgotPasswordOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service Service
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for customer registration.
type SignupRequest struct {
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required,min=8"`
	FirstName string         `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string         `json:"last_name" validate:"required,min=1,max=100"`
	Phone     string         `json:"phone" validate:"required,min=7,max=20"`
	Address   AddressRequest `json:"address" validate:"required"`
}

// AddressRequest is the nested address block of a signup request.
type AddressRequest struct {
	AddressLine string `json:"address_line" validate:"required,min=1,max=200"`
	Apartment   string `json:"apartment" validate:"max=50"`
	City        string `json:"city" validate:"required,min=1,max=100"`
	State       string `json:"state" validate:"required,min=1,max=100"`
	Zip         string `json:"zip" validate:"required,min=3,max=12"`
}

// SignupTechnicianRequest is the JSON request body for technician registration.
type SignupTechnicianRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
}

// EmailRequest is the JSON request body for email-only operations
// (resend OTP, forgot password).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest is the JSON request body for OTP verification.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=5,numeric"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=5,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ChangePasswordRequest is the JSON request body for password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// RefreshTokenRequest is the JSON request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// --- Handlers ---

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadBody(w, err)
		return false
	}
	if err := validator.Validate(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), service.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address: service.AddressInput{
			AddressLine: req.Address.AddressLine,
			Apartment:   req.Address.Apartment,
			City:        req.Address.City,
			State:       req.Address.State,
			Zip:         req.Address.Zip,
		},
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "OTP sent to your email. Please verify to complete registration.",
		Data:    user,
	})
}

// SignupTechnician handles POST /api/v1/auth/signup-technician
func (h *AuthHandler) SignupTechnician(w http.ResponseWriter, r *http.Request) {
	var req SignupTechnicianRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.SignupTechnician(r.Context(), service.SignupTechnicianInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "OTP sent to your email. Please verify to complete registration.",
		Data:    user,
	})
}

// ResendOTP handles POST /api/v1/auth/resend-otp
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResendRegistrationOTP(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "OTP sent to your email.",
	})
}

// VerifyOTP handles POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyRegistrationOTP(r.Context(), req.Email, req.OTP); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Email verified successfully.",
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Login successful.",
		Data:    tokens,
	})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Password reset OTP sent to your email.",
	})
}

// ResendForgotOTP handles POST /api/v1/auth/resend-forgot-otp
func (h *AuthHandler) ResendForgotOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResendForgotPasswordOTP(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Password reset OTP sent to your email.",
	})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Password has been reset successfully.",
	})
}

// ChangePassword handles POST /api/v1/auth/change-password (authenticated).
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Password changed successfully.",
	})
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	tokens, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Token refreshed.",
		Data:    tokens,
	})
}
