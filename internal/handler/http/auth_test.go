package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazemadel/accounts/internal/auth"
	"github.com/hazemadel/accounts/internal/domain"
	"github.com/hazemadel/accounts/internal/event"
	"github.com/hazemadel/accounts/internal/service"
	"github.com/hazemadel/accounts/internal/storage/memory"
	"github.com/hazemadel/accounts/internal/storage/presign"
	apperrors "github.com/hazemadel/accounts/pkg/errors"
	"github.com/hazemadel/accounts/pkg/httputil"
	pkgkafka "github.com/hazemadel/accounts/pkg/kafka"
	"github.com/hazemadel/accounts/pkg/middleware"
)

// ============================================================================
// Mocks
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) SetOTP(ctx context.Context, id, otpHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, otpHash, expiresAt)
	return args.Error(0)
}

func (m *mockUserRepo) ConfirmEmail(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) ConsumeOTP(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) EnableTwoStep(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) SetTwoStep(ctx context.Context, id string, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

func (m *mockUserRepo) ResetPassword(ctx context.Context, id, passwordHash string) (bool, error) {
	args := m.Called(ctx, id, passwordHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) ChangePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepo) UpdateEmail(ctx context.Context, id, email, otpHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, email, otpHash, expiresAt)
	return args.Error(0)
}

func (m *mockUserRepo) StampCredentialsChanged(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockUserRepo) UpdateImage(ctx context.Context, id, imageKey string) error {
	args := m.Called(ctx, id, imageKey)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	args := m.Called(ctx, tokenID, userID, expiresAt)
	return args.Error(0)
}

func (m *mockLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

const testUserID = "550e8400-e29b-41d4-a716-446655440001"

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func handlerTestService(users *mockUserRepo, ledger *mockLedger) *service.AccountService {
	logger := handlerTestLogger()
	keyring := auth.NewKeyring(auth.KeyringConfig{
		AccessUserSecret:   "test-access-user-secret",
		AccessAdminSecret:  "test-access-admin-secret",
		RefreshUserSecret:  "test-refresh-user-secret",
		RefreshAdminSecret: "test-refresh-admin-secret",
		UserPrefix:         "Bearer",
		AdminPrefix:        "Admin",
	})
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig([]string{"localhost:19092"}), logger)
	return service.NewAccountService(
		users,
		ledger,
		auth.NewManager(keyring, 15*time.Minute, 24*time.Hour),
		nil,
		event.NewProducer(kafkaProducer, logger),
		memory.New("https://cdn.test"),
		presign.New("test-presign-secret", "https://uploads.test"),
		15*time.Minute,
		handlerTestLogger(),
	)
}

// fakeSession returns a middleware validator that always authenticates as the
// given user, mirroring what the production session validator injects.
func fakeSession(userID string) middleware.SessionValidator {
	return func(ctx context.Context, authorization string) (*middleware.Session, error) {
		return &middleware.Session{
			UserID:         userID,
			Email:          "test@example.com",
			Role:           "user",
			TokenID:        "test-jti",
			TokenExpiresAt: time.Now().Add(time.Hour).UTC(),
		}, nil
	}
}

// setupAuthRouter mirrors the production public auth routes.
func setupAuthRouter(h *AuthHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/signup", h.SignUp)
		r.Post("/confirm-email", h.ConfirmEmail)
		r.Post("/signin", h.SignIn)
		r.Post("/confirm-login", h.ConfirmLogin)
		r.Post("/google", h.GoogleSignIn)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(fakeSession(testUserID)))
			r.Post("/refresh", h.Refresh)
		})
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// testHash creates a bcrypt hash with cost 4 for fast tests.
func testHash(secret string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func confirmedUser() *domain.User {
	return &domain.User{
		ID:           testUserID,
		FirstName:    "John",
		LastName:     "Doe",
		Email:        "john@example.com",
		PasswordHash: testHash("SecurePass123"),
		Role:         domain.RoleUser,
		Provider:     domain.ProviderLocal,
		Confirmed:    true,
		IsActive:     true,
	}
}

// ============================================================================
// SignUp
// ============================================================================

func TestSignUp_Created(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := postJSON(t, router, "/api/v1/auth/signup", `{
		"full_name": "John Doe",
		"email": "john@example.com",
		"password": "SecurePass123",
		"confirm_password": "SecurePass123",
		"age": 25,
		"gender": "male"
	}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	users.AssertExpectations(t)
}

func TestSignUp_ValidationErrors(t *testing.T) {
	router := setupAuthRouter(NewAuthHandler(handlerTestService(new(mockUserRepo), new(mockLedger)), handlerTestLogger()))

	tests := []struct {
		name string
		body string
	}{
		{"bad email", `{"full_name":"John Doe","email":"not-an-email","password":"SecurePass123","confirm_password":"SecurePass123","age":25}`},
		{"short password", `{"full_name":"John Doe","email":"john@example.com","password":"Ab1","confirm_password":"Ab1","age":25}`},
		{"confirmation mismatch", `{"full_name":"John Doe","email":"john@example.com","password":"SecurePass123","confirm_password":"Different123","age":25}`},
		{"missing age", `{"full_name":"John Doe","email":"john@example.com","password":"SecurePass123","confirm_password":"SecurePass123"}`},
		{"bad gender", `{"full_name":"John Doe","email":"john@example.com","password":"SecurePass123","confirm_password":"SecurePass123","age":25,"gender":"robot"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/v1/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		})
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("account", "email", "john@example.com"))

	rec := postJSON(t, router, "/api/v1/auth/signup", `{
		"full_name": "John Doe",
		"email": "john@example.com",
		"password": "SecurePass123",
		"confirm_password": "SecurePass123",
		"age": 25
	}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_EMAIL", resp.Error.Code)
}

func TestSignUp_MalformedJSON(t *testing.T) {
	router := setupAuthRouter(NewAuthHandler(handlerTestService(new(mockUserRepo), new(mockLedger)), handlerTestLogger()))

	rec := postJSON(t, router, "/api/v1/auth/signup", `{"full_name": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

// ============================================================================
// ConfirmEmail
// ============================================================================

func TestConfirmEmail_OK(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	expiry := time.Now().Add(5 * time.Minute)
	user := confirmedUser()
	user.Confirmed = false
	user.OTPHash = testHash("123456")
	user.OTPExpiresAt = &expiry
	users.On("GetByEmail", mock.Anything, "john@example.com").Return(user, nil)
	users.On("ConfirmEmail", mock.Anything, testUserID).Return(true, nil)

	rec := postJSON(t, router, "/api/v1/auth/confirm-email", `{"email":"john@example.com","otp":"123456"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestConfirmEmail_BadShapeRejectedBeforeService(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	for _, otp := range []string{"12345", "1234567", "12345a"} {
		rec := postJSON(t, router, "/api/v1/auth/confirm-email", `{"email":"john@example.com","otp":"`+otp+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "otp %q", otp)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code, "otp %q", otp)
	}
	users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestConfirmEmail_WrongCode(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	expiry := time.Now().Add(5 * time.Minute)
	user := confirmedUser()
	user.OTPHash = testHash("123456")
	user.OTPExpiresAt = &expiry
	users.On("GetByEmail", mock.Anything, "john@example.com").Return(user, nil)

	rec := postJSON(t, router, "/api/v1/auth/confirm-email", `{"email":"john@example.com","otp":"654321"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_OTP", resp.Error.Code)
}

// ============================================================================
// SignIn
// ============================================================================

func TestSignIn_ReturnsTokens(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	users.On("GetByEmail", mock.Anything, "john@example.com").Return(confirmedUser(), nil)

	rec := postJSON(t, router, "/api/v1/auth/signin", `{"email":"john@example.com","password":"SecurePass123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data := resp.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	users.On("GetByEmail", mock.Anything, "john@example.com").Return(confirmedUser(), nil)

	rec := postJSON(t, router, "/api/v1/auth/signin", `{"email":"john@example.com","password":"WrongPass123"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestSignIn_NotConfirmed(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	user := confirmedUser()
	user.Confirmed = false
	users.On("GetByEmail", mock.Anything, "john@example.com").Return(user, nil)

	rec := postJSON(t, router, "/api/v1/auth/signin", `{"email":"john@example.com","password":"SecurePass123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_CONFIRMED", resp.Error.Code)
}

func TestSignIn_TwoStepPending(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	user := confirmedUser()
	user.TwoStepEnabled = true
	users.On("GetByEmail", mock.Anything, "john@example.com").Return(user, nil)
	users.On("SetOTP", mock.Anything, testUserID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	rec := postJSON(t, router, "/api/v1/auth/signin", `{"email":"john@example.com","password":"SecurePass123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "two_step_pending", data["status"])
	assert.NotContains(t, data, "tokens")
}

// ============================================================================
// GoogleSignIn
// ============================================================================

func TestGoogleSignIn_NotConfigured(t *testing.T) {
	router := setupAuthRouter(NewAuthHandler(handlerTestService(new(mockUserRepo), new(mockLedger)), handlerTestLogger()))

	rec := postJSON(t, router, "/api/v1/auth/google", `{"id_token":"some-token"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", resp.Error.Code)
}

// ============================================================================
// Password reset
// ============================================================================

func TestForgotPassword_OK(t *testing.T) {
	users := new(mockUserRepo)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, new(mockLedger)), handlerTestLogger()))

	users.On("GetByEmail", mock.Anything, "john@example.com").Return(confirmedUser(), nil)
	users.On("SetOTP", mock.Anything, testUserID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	rec := postJSON(t, router, "/api/v1/auth/forgot-password", `{"email":"john@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestResetPassword_ConfirmationMismatch(t *testing.T) {
	router := setupAuthRouter(NewAuthHandler(handlerTestService(new(mockUserRepo), new(mockLedger)), handlerTestLogger()))

	rec := postJSON(t, router, "/api/v1/auth/reset-password", `{
		"email": "john@example.com",
		"otp": "123456",
		"new_password": "NewSecure456",
		"confirm_password": "Other456789"
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// ============================================================================
// Refresh
// ============================================================================

func TestRefresh_RevokesAndIssues(t *testing.T) {
	users := new(mockUserRepo)
	ledger := new(mockLedger)
	router := setupAuthRouter(NewAuthHandler(handlerTestService(users, ledger), handlerTestLogger()))

	users.On("GetByID", mock.Anything, testUserID).Return(confirmedUser(), nil)
	ledger.On("Revoke", mock.Anything, "test-jti", testUserID, mock.AnythingOfType("time.Time")).Return(nil)

	rec := postJSON(t, router, "/api/v1/auth/refresh", `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	tokens := resp.Data.(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
	ledger.AssertExpectations(t)
}
