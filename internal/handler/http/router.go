package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazemadel/accounts/internal/auth"
	"github.com/hazemadel/accounts/internal/service"
	"github.com/hazemadel/accounts/pkg/health"
	"github.com/hazemadel/accounts/pkg/middleware"
)

// NewRouter creates a chi router with all account service routes registered.
func NewRouter(
	accountService *service.AccountService,
	sessions *auth.SessionValidator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("accounts"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("accounts"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Session validators bridging the middleware to the token layer. The raw
	// Authorization header flows through so the bearer prefix selects the
	// signature key.
	sessionFor := func(class auth.TokenClass) middleware.SessionValidator {
		return func(ctx context.Context, authorization string) (*middleware.Session, error) {
			user, claims, err := sessions.Validate(ctx, authorization, class)
			if err != nil {
				return nil, err
			}
			return &middleware.Session{
				UserID:         user.ID,
				Email:          user.Email,
				Role:           string(user.Role),
				TokenID:        claims.ID,
				TokenExpiresAt: auth.ExpiresAt(claims),
			}, nil
		}
	}

	authHandler := NewAuthHandler(accountService, logger)
	userHandler := NewUserHandler(accountService, logger)

	// Auth endpoints (public)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/signup", authHandler.SignUp)
		r.Post("/confirm-email", authHandler.ConfirmEmail)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/confirm-login", authHandler.ConfirmLogin)
		r.Post("/google", authHandler.GoogleSignIn)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)

		// Refresh authenticates with the refresh token itself.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionFor(auth.ClassRefresh)))
			r.Post("/refresh", authHandler.Refresh)
		})
	})

	// Account endpoints (access-token auth required)
	r.Route("/api/v1/users/me", func(r chi.Router) {
		r.Use(middleware.Auth(sessionFor(auth.ClassAccess)))

		// Multipart uploads; everything else is JSON.
		r.Post("/image", userHandler.UploadImage)
		r.Post("/cover-images", userHandler.UploadCoverImages)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/", userHandler.GetProfile)
			r.Patch("/", userHandler.UpdateProfile)
			r.Post("/change-password", userHandler.ChangePassword)
			r.Post("/email", userHandler.UpdateEmail)
			r.Post("/two-step/enable", userHandler.EnableTwoStep)
			r.Post("/two-step/verify", userHandler.VerifyTwoStep)
			r.Post("/two-step/disable", userHandler.DisableTwoStep)
			r.Post("/logout", userHandler.Logout)
			r.Post("/deactivate", userHandler.Deactivate)
			r.Post("/reactivate", userHandler.Reactivate)
			r.Post("/image/presign", userHandler.PresignImage)
		})
	})

	return r
}
