package http

import (
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/hazemadel/accounts/internal/domain"
	"github.com/hazemadel/accounts/internal/service"
	"github.com/hazemadel/accounts/pkg/httputil"
	"github.com/hazemadel/accounts/pkg/middleware"
)

// maxImageSize caps multipart avatar uploads at 5MB.
const maxImageSize = 5 << 20

// maxCoverUploadSize caps a cover-images batch at 20MB total.
const maxCoverUploadSize = 20 << 20

// UserHandler handles HTTP requests for the authenticated account.
type UserHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// UpdateProfileRequest is the JSON request body for a partial profile update.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Age      *int    `json:"age" validate:"omitempty,gt=0"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Gender   *string `json:"gender" validate:"omitempty,oneof=male female"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// UpdateEmailRequest is the JSON request body for an email change.
type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyTwoStepRequest is the JSON request body confirming two-step setup.
type VerifyTwoStepRequest struct {
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

// LogoutRequest is the JSON request body for logout. With all=true every
// outstanding session for the account is invalidated.
type LogoutRequest struct {
	All bool `json:"all"`
}

// PresignImageRequest is the JSON request body for a direct-upload URL.
type PresignImageRequest struct {
	Filename    string `json:"filename" validate:"omitempty,max=255"`
	ContentType string `json:"content_type" validate:"required,max=100"`
}

// --- Handlers ---

// GetProfile handles GET /api/v1/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	user, err := h.service.GetProfile(r.Context(), session.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// UpdateProfile handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := service.UpdateProfileInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Age:      req.Age,
		Address:  req.Address,
	}
	if req.Gender != nil {
		g := domain.Gender(*req.Gender)
		input.Gender = &g
	}

	user, err := h.service.UpdateProfile(r.Context(), session.UserID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// ChangePassword handles POST /api/v1/users/me/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), session.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "password changed, please sign in again"},
	})
}

// UpdateEmail handles POST /api/v1/users/me/email
func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req UpdateEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateEmail(r.Context(), session.UserID, req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "a confirmation code has been sent to your new email"},
	})
}

// EnableTwoStep handles POST /api/v1/users/me/two-step/enable
func (h *UserHandler) EnableTwoStep(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	if err := h.service.EnableTwoStep(r.Context(), session.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "a verification code has been sent to your email"},
	})
}

// VerifyTwoStep handles POST /api/v1/users/me/two-step/verify
func (h *UserHandler) VerifyTwoStep(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req VerifyTwoStepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.VerifyTwoStep(r.Context(), session.UserID, req.OTP); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "two-step verification enabled"},
	})
}

// DisableTwoStep handles POST /api/v1/users/me/two-step/disable
func (h *UserHandler) DisableTwoStep(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	if err := h.service.DisableTwoStep(r.Context(), session.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "two-step verification disabled"},
	})
}

// Logout handles POST /api/v1/users/me/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req LogoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), session.UserID, session.TokenID, session.TokenExpiresAt, req.All); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "logged out"},
	})
}

// Deactivate handles POST /api/v1/users/me/deactivate
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	if err := h.service.Deactivate(r.Context(), session.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "account deactivated"},
	})
}

// Reactivate handles POST /api/v1/users/me/reactivate
func (h *UserHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	if err := h.service.Reactivate(r.Context(), session.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "account reactivated"},
	})
}

// UploadImage handles POST /api/v1/users/me/image (multipart form, field
// "image").
func (h *UserHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid multipart form: " + err.Error()},
		})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "image file is required"},
		})
		return
	}
	defer file.Close()

	url, err := h.service.UploadProfileImage(r.Context(), session.UserID, service.UploadImageInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"url": url},
	})
}

// UploadCoverImages handles POST /api/v1/users/me/cover-images (multipart
// form, repeated field "images").
func (h *UserHandler) UploadCoverImages(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverUploadSize)
	if err := r.ParseMultipartForm(maxCoverUploadSize); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid multipart form: " + err.Error()},
		})
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "at least one image file is required"},
		})
		return
	}

	inputs := make([]service.UploadImageInput, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "unreadable image file: " + header.Filename},
			})
			return
		}
		files = append(files, file)
		inputs = append(inputs, service.UploadImageInput{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        file,
		})
	}

	images, err := h.service.UploadCoverImages(r.Context(), session.UserID, inputs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]any{"images": images},
	})
}

// PresignImage handles POST /api/v1/users/me/image/presign
func (h *UserHandler) PresignImage(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req PresignImageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	upload, err := h.service.PresignProfileImage(r.Context(), session.UserID, req.Filename, req.ContentType)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: upload})
}

// requireSession extracts the authenticated session or answers 401.
func requireSession(w http.ResponseWriter, r *http.Request) *middleware.Session {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"},
		})
		return nil
	}
	return session
}
