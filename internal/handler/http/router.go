package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elitehs/auth-service/internal/auth"
	"github.com/elitehs/auth-service/pkg/health"
	"github.com/elitehs/auth-service/pkg/middleware"
)

// TokenVerifier verifies access tokens for the authenticated route group.
type TokenVerifier interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	svc Service,
	verifier TokenVerifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to our internal JWT claims.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := verifier.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.ID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	authHandler := NewAuthHandler(svc, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints
		r.Post("/signup", authHandler.Signup)
		r.Post("/signup-technician", authHandler.SignupTechnician)
		r.Post("/resend-otp", authHandler.ResendOTP)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/login", authHandler.Login)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/resend-forgot-otp", authHandler.ResendForgotOTP)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/refresh", authHandler.RefreshToken)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	return r
}
