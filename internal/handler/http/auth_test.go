package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitehs/auth-service/internal/auth"
	"github.com/elitehs/auth-service/internal/domain"
	"github.com/elitehs/auth-service/internal/service"
	apperrors "github.com/elitehs/auth-service/pkg/errors"
	"github.com/elitehs/auth-service/pkg/health"
)

// stubService implements Service with overridable behavior per test.
type stubService struct {
	signup           func(ctx context.Context, in service.SignupInput) (*domain.User, error)
	login            func(ctx context.Context, email, password string) (*domain.TokenPair, error)
	verifyOTP        func(ctx context.Context, email, code string) error
	resetPassword    func(ctx context.Context, email, code, newPassword string) error
	changePassword   func(ctx context.Context, userID, oldPassword, newPassword string) error
	refreshToken     func(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	emailOnlyErr     error
	signupTechnician func(ctx context.Context, in service.SignupTechnicianInput) (*domain.User, error)
}

func (s *stubService) Signup(ctx context.Context, in service.SignupInput) (*domain.User, error) {
	return s.signup(ctx, in)
}

func (s *stubService) SignupTechnician(ctx context.Context, in service.SignupTechnicianInput) (*domain.User, error) {
	return s.signupTechnician(ctx, in)
}

func (s *stubService) ResendRegistrationOTP(ctx context.Context, email string) error {
	return s.emailOnlyErr
}

func (s *stubService) VerifyRegistrationOTP(ctx context.Context, email, code string) error {
	return s.verifyOTP(ctx, email, code)
}

func (s *stubService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	return s.login(ctx, email, password)
}

func (s *stubService) ForgotPassword(ctx context.Context, email string) error {
	return s.emailOnlyErr
}

func (s *stubService) ResendForgotPasswordOTP(ctx context.Context, email string) error {
	return s.emailOnlyErr
}

func (s *stubService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return s.resetPassword(ctx, email, code, newPassword)
}

func (s *stubService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return s.changePassword(ctx, userID, oldPassword, newPassword)
}

func (s *stubService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	return s.refreshToken(ctx, refreshToken)
}

var testJWT = auth.NewJWTManager("handler-test-secret", 15*time.Minute)

func newTestRouter(svc Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(svc, testJWT, health.NewHandler(), logger, CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var env response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func validSignupBody() map[string]any {
	return map[string]any{
		"email":      "alice@example.com",
		"password":   "secret123",
		"first_name": "Alice",
		"last_name":  "Smith",
		"phone":      "+15550100",
		"address": map[string]any{
			"address_line": "1 Main St",
			"city":         "Austin",
			"state":        "TX",
			"zip":          "78701",
		},
	}
}

func TestSignup_Created(t *testing.T) {
	svc := &stubService{
		signup: func(ctx context.Context, in service.SignupInput) (*domain.User, error) {
			assert.Equal(t, "alice@example.com", in.Email)
			assert.Equal(t, "1 Main St", in.Address.AddressLine)
			return &domain.User{ID: "u-1", Email: in.Email, Role: domain.RoleCustomer}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", validSignupBody(), nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Contains(t, env.Message, "OTP sent")
	assert.NotNil(t, env.Data)
}

func TestSignup_ValidationError(t *testing.T) {
	router := newTestRouter(&stubService{})

	body := validSignupBody()
	body["email"] = "not-an-email"
	body["password"] = "short"

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", body, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "Email")
	assert.Contains(t, env.Error.Fields, "Password")
}

func TestSignup_MalformedBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestSignup_Conflict(t *testing.T) {
	svc := &stubService{
		signup: func(ctx context.Context, in service.SignupInput) (*domain.User, error) {
			return nil, apperrors.Conflict("User already exists")
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", validSignupBody(), nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, "User already exists", env.Error.Message)
}

func TestSignup_RequiresJSONContentType(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestVerifyOTP_Forbidden(t *testing.T) {
	svc := &stubService{
		verifyOTP: func(ctx context.Context, email, code string) error {
			return apperrors.Forbidden("Too many OTP attempts. Please resend OTP.")
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-otp",
		map[string]string{"email": "a@x.com", "otp": "12345"}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestVerifyOTP_RejectsNonNumericCode(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/verify-otp",
		map[string]string{"email": "a@x.com", "otp": "12a45"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_Success(t *testing.T) {
	svc := &stubService{
		login: func(ctx context.Context, email, password string) (*domain.TokenPair, error) {
			return &domain.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "a@x.com", "password": "secret123"}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acc", data["access_token"])
	assert.Equal(t, "ref", data["refresh_token"])
}

func TestLogin_InvalidPassword(t *testing.T) {
	svc := &stubService{
		login: func(ctx context.Context, email, password string) (*domain.TokenPair, error) {
			return nil, apperrors.Unauthorized("Invalid password")
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "a@x.com", "password": "wrong-pass"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Invalid password", env.Error.Message)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := &stubService{
		login: func(ctx context.Context, email, password string) (*domain.TokenPair, error) {
			return nil, apperrors.NotFound("User not found")
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "a@x.com", "password": "secret123"}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefresh_Unauthorized(t *testing.T) {
	svc := &stubService{
		refreshToken: func(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
			return nil, apperrors.Unauthorized("Invalid refresh token")
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": "stale"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_RequiresBearer(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/change-password",
		map[string]string{"old_password": "a", "new_password": "brand-new-pass"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_AuthenticatedCallReachesService(t *testing.T) {
	var gotUserID string
	svc := &stubService{
		changePassword: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			gotUserID = userID
			return nil
		},
	}
	router := newTestRouter(svc)

	token, err := testJWT.GenerateAccessToken("u-42", "alice@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/change-password",
		map[string]string{"old_password": "secret123", "new_password": "brand-new-pass"},
		map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-42", gotUserID)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
