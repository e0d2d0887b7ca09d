package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hazemadel/accounts/internal/domain"
	"github.com/hazemadel/accounts/internal/service"
	"github.com/hazemadel/accounts/pkg/httputil"
	"github.com/hazemadel/accounts/pkg/middleware"
	"github.com/hazemadel/accounts/pkg/validator"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// AuthHandler handles HTTP requests for authentication endpoints.
type AuthHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignUpRequest is the JSON request body for account registration.
type SignUpRequest struct {
	FullName        string `json:"full_name" validate:"required,min=1,max=200"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Phone           string `json:"phone" validate:"omitempty,max=20"`
	Age             int    `json:"age" validate:"required,gt=0"`
	Address         string `json:"address" validate:"omitempty,max=500"`
	Gender          string `json:"gender" validate:"omitempty,oneof=male female"`
}

// ConfirmEmailRequest is the JSON request body for email confirmation.
type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// SignInRequest is the JSON request body for password sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ConfirmLoginRequest is the JSON request body completing a two-step sign-in.
type ConfirmLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// GoogleSignInRequest is the JSON request body for federated sign-in.
type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// ForgotPasswordRequest is the JSON request body for requesting a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	OTP             string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// --- Response types ---

// AuthResponse wraps account data with tokens.
type AuthResponse struct {
	User   any `json:"user"`
	Tokens any `json:"tokens"`
}

// --- Handlers ---

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.service.SignUp(r.Context(), service.SignUpInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
		Age:             req.Age,
		Address:         req.Address,
		Gender:          domain.Gender(req.Gender),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: map[string]any{
			"user":    user,
			"message": "a confirmation code has been sent to your email",
		},
	})
}

// ConfirmEmail handles POST /api/v1/auth/confirm-email
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req ConfirmEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), req.Email, req.OTP); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "email confirmed"},
	})
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if result.PendingTwoStep {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{
			Data: map[string]string{
				"status":  "two_step_pending",
				"message": "a login code has been sent to your email",
			},
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AuthResponse{User: result.User, Tokens: result.Tokens},
	})
}

// ConfirmLogin handles POST /api/v1/auth/confirm-login
func (h *AuthHandler) ConfirmLogin(w http.ResponseWriter, r *http.Request) {
	var req ConfirmLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, tokens, err := h.service.ConfirmLogin(r.Context(), req.Email, req.OTP)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AuthResponse{User: user, Tokens: tokens},
	})
}

// GoogleSignIn handles POST /api/v1/auth/google
func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, tokens, err := h.service.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AuthResponse{User: user, Tokens: tokens},
	})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "a password reset code has been sent to your email"},
	})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword, req.ConfirmPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "password has been reset successfully"},
	})
}

// Refresh handles POST /api/v1/auth/refresh. The route is mounted behind
// refresh-class authentication; the presented refresh token is revoked and a
// fresh pair issued.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"},
		})
		return
	}

	tokens, err := h.service.Refresh(r.Context(), session.UserID, session.TokenID, session.TokenExpiresAt)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tokens})
}

// decodeBody decodes and validates a JSON request body, answering 400 itself
// when either step fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}

	return true
}
