package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/hazemadel/accounts/internal/auth"
	"github.com/hazemadel/accounts/internal/domain"
	"github.com/hazemadel/accounts/internal/event"
	"github.com/hazemadel/accounts/internal/idp"
	"github.com/hazemadel/accounts/internal/repository"
	"github.com/hazemadel/accounts/internal/storage"
	apperrors "github.com/hazemadel/accounts/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// OTP lifetimes. Confirmation and reset codes travel by email and get a
// longer window than login codes, which the user is actively waiting for.
const (
	confirmOTPTTL = 10 * time.Minute
	loginOTPTTL   = 5 * time.Minute
)

// IdentityVerifier verifies a federated identity token and extracts the
// holder's profile.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*idp.Profile, error)
}

// AccountService implements the business logic for account and auth
// operations.
type AccountService struct {
	users      repository.UserRepository
	ledger     repository.RevocationLedger
	tokens     *auth.Manager
	google     IdentityVerifier
	producer   *event.Producer
	store      storage.Storage
	presigner  storage.Presigner
	presignTTL time.Duration
	logger     *slog.Logger
}

// NewAccountService creates a new account service. google may be nil when
// federated sign-in is not configured.
func NewAccountService(
	users repository.UserRepository,
	ledger repository.RevocationLedger,
	tokens *auth.Manager,
	google IdentityVerifier,
	producer *event.Producer,
	store storage.Storage,
	presigner storage.Presigner,
	presignTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:      users,
		ledger:     ledger,
		tokens:     tokens,
		google:     google,
		producer:   producer,
		store:      store,
		presigner:  presigner,
		presignTTL: presignTTL,
		logger:     logger,
	}
}

// --- Input/Output types ---

// SignUpInput holds the parameters for registering a new account.
type SignUpInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           string
	Age             int
	Address         string
	Gender          domain.Gender
}

// SignInResult is the outcome of a password sign-in. When the account has
// two-step verification enabled, Tokens is nil and PendingTwoStep is true:
// the caller must complete the login with the emailed code.
type SignInResult struct {
	User           *domain.User
	Tokens         *domain.TokenPair
	PendingTwoStep bool
}

// UpdateProfileInput holds the parameters for a partial profile update.
type UpdateProfileInput struct {
	FullName *string
	Phone    *string
	Age      *int
	Address  *string
	Gender   *domain.Gender
}

// UploadImageInput holds an avatar upload payload.
type UploadImageInput struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// PresignedUpload is a time-limited URL authorizing a direct client upload.
type PresignedUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// StoredImage identifies an uploaded object by key and public URL.
type StoredImage struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// --- Registration and confirmation ---

// SignUp creates a new unconfirmed account and emails a confirmation code.
func (s *AccountService) SignUp(ctx context.Context, input SignUpInput) (*domain.User, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Age <= 0 {
		return nil, apperrors.InvalidInput("age is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		return nil, apperrors.PasswordMismatch()
	}

	passwordHash, err := auth.HashSecret(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	otpHash, err := auth.HashSecret(otp)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	firstName, lastName := domain.SplitFullName(input.FullName)
	now := time.Now().UTC()
	otpExpiry := now.Add(confirmOTPTTL)
	user := &domain.User{
		ID:           uuid.New().String(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Phone:        input.Phone,
		Age:          input.Age,
		Address:      input.Address,
		Gender:       input.Gender,
		Role:         domain.RoleUser,
		Provider:     domain.ProviderLocal,
		OTPHash:      otpHash,
		OTPExpiresAt: &otpExpiry,
		Confirmed:    false,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.DuplicateEmail(input.Email)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.emitOTP(ctx, user.ID, user.Email, "Confirm your email", otp, event.PurposeConfirmEmail)

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// ConfirmEmail verifies the emailed confirmation code and marks the account
// confirmed. A concurrent confirmation with the same code wins at most once.
func (s *AccountService) ConfirmEmail(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.NotFound("account", email)
	}

	if err := checkOTP(user, code); err != nil {
		return err
	}

	confirmed, err := s.users.ConfirmEmail(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	if !confirmed {
		return apperrors.InvalidOTP()
	}

	s.logger.InfoContext(ctx, "email confirmed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Sign-in ---

// SignIn authenticates an account with email and password. Accounts with
// two-step verification enabled receive a login code instead of tokens.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if !auth.VerifySecret(password, user.PasswordHash) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if !user.Confirmed {
		return nil, apperrors.NotConfirmed()
	}
	if !user.IsActive {
		return nil, apperrors.Deactivated()
	}

	if user.TwoStepEnabled {
		if err := s.issueOTP(ctx, user, "Your login code", event.PurposeLogin, loginOTPTTL); err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "two-step login code issued",
			slog.String("user_id", user.ID),
		)

		return &SignInResult{User: user, PendingTwoStep: true}, nil
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "account signed in",
		slog.String("user_id", user.ID),
	)

	return &SignInResult{User: user, Tokens: tokens}, nil
}

// ConfirmLogin completes a two-step sign-in with the emailed login code.
func (s *AccountService) ConfirmLogin(ctx context.Context, email, code string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperrors.NotFound("account", email)
	}

	if err := checkOTP(user, code); err != nil {
		return nil, nil, err
	}

	consumed, err := s.users.ConsumeOTP(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return nil, nil, apperrors.InvalidOTP()
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "two-step login completed",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// LoginWithGoogle authenticates via a Google identity token, creating the
// account on first sign-in. Accounts created this way carry no password.
func (s *AccountService) LoginWithGoogle(ctx context.Context, idToken string) (*domain.User, *domain.TokenPair, error) {
	if s.google == nil {
		return nil, nil, apperrors.ProviderUnavailable()
	}
	if idToken == "" {
		return nil, nil, apperrors.InvalidInput("identity token is required")
	}

	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid identity token")
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.Provider != domain.ProviderGoogle {
			return nil, nil, apperrors.ProviderMismatch(string(user.Provider))
		}
		if !user.IsActive {
			return nil, nil, apperrors.Deactivated()
		}
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = s.createFederatedAccount(ctx, profile)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("lookup account: %w", err)
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "federated sign-in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)

	return user, tokens, nil
}

func (s *AccountService) createFederatedAccount(ctx context.Context, profile *idp.Profile) (*domain.User, error) {
	firstName, lastName := domain.SplitFullName(profile.Name)
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     profile.Email,
		Image:     profile.Picture,
		Role:      domain.RoleUser,
		Provider:  domain.ProviderGoogle,
		Confirmed: profile.EmailVerified,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent first sign-in may have created it already.
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return s.users.GetByEmail(ctx, profile.Email)
		}
		return nil, fmt.Errorf("create federated account: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// --- Sessions ---

// Logout invalidates sessions. With all=true every outstanding token for the
// account stops validating; otherwise only the presented token is revoked.
func (s *AccountService) Logout(ctx context.Context, userID, tokenID string, tokenExpiresAt time.Time, all bool) error {
	if all {
		if err := s.users.StampCredentialsChanged(ctx, userID); err != nil {
			return fmt.Errorf("stamp credentials changed: %w", err)
		}

		s.logger.InfoContext(ctx, "logged out everywhere",
			slog.String("user_id", userID),
		)
		return nil
	}

	if userID == "" || tokenID == "" || tokenExpiresAt.IsZero() {
		return apperrors.MissingTokenClaims()
	}

	if err := s.ledger.Revoke(ctx, tokenID, userID, tokenExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.InfoContext(ctx, "logged out",
		slog.String("user_id", userID),
		slog.String("token_id", tokenID),
	)

	return nil
}

// Refresh revokes the presented refresh token and issues a fresh pair. The
// caller must have authenticated with a refresh-class token.
func (s *AccountService) Refresh(ctx context.Context, userID, tokenID string, tokenExpiresAt time.Time) (*domain.TokenPair, error) {
	if userID == "" || tokenID == "" || tokenExpiresAt.IsZero() {
		return nil, apperrors.MissingTokenClaims()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Unauthorized("unauthorized")
	}

	if err := s.ledger.Revoke(ctx, tokenID, userID, tokenExpiresAt); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", userID),
	)

	return tokens, nil
}

// --- Passwords ---

// ForgotPassword issues a password-reset code to the account's email.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.NotFound("account", email)
	}

	// Federated accounts have no password to reset; a reset here would
	// bolt password sign-in onto an account that never had one.
	if user.Provider != domain.ProviderLocal {
		return apperrors.ProviderMismatch(string(user.Provider))
	}

	if err := s.issueOTP(ctx, user, "Reset your password", event.PurposePasswordReset, confirmOTPTTL); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword sets a new password after verifying the emailed reset code.
// Every outstanding token for the account stops validating.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword != confirmPassword {
		return apperrors.PasswordMismatch()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.NotFound("account", email)
	}

	if user.Provider != domain.ProviderLocal {
		return apperrors.ProviderMismatch(string(user.Provider))
	}

	if err := checkOTP(user, code); err != nil {
		return err
	}

	passwordHash, err := auth.HashSecret(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	reset, err := s.users.ResetPassword(ctx, user.ID, passwordHash)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !reset {
		return apperrors.InvalidOTP()
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ChangePassword lets an authenticated account rotate its password. Every
// outstanding token stops validating afterwards.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword != confirmPassword {
		return apperrors.PasswordMismatch()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NotFound("account", userID)
	}

	if !auth.VerifySecret(currentPassword, user.PasswordHash) {
		return apperrors.WrongPassword()
	}

	passwordHash, err := auth.HashSecret(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.ChangePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Two-step verification ---

// EnableTwoStep starts enabling two-step verification by emailing a code.
// The flag only flips once VerifyTwoStep confirms the code.
func (s *AccountService) EnableTwoStep(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NotFound("account", userID)
	}
	if user.TwoStepEnabled {
		return apperrors.InvalidInput("two-step verification is already enabled")
	}

	if err := s.issueOTP(ctx, user, "Enable two-step verification", event.PurposeTwoStep, loginOTPTTL); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "two-step enable code issued",
		slog.String("user_id", user.ID),
	)

	return nil
}

// VerifyTwoStep confirms the enable code and turns two-step verification on.
func (s *AccountService) VerifyTwoStep(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NotFound("account", userID)
	}

	if err := checkOTP(user, code); err != nil {
		return err
	}

	enabled, err := s.users.EnableTwoStep(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("enable two-step: %w", err)
	}
	if !enabled {
		return apperrors.InvalidOTP()
	}

	s.logger.InfoContext(ctx, "two-step verification enabled",
		slog.String("user_id", user.ID),
	)

	return nil
}

// DisableTwoStep turns two-step verification off.
func (s *AccountService) DisableTwoStep(ctx context.Context, userID string) error {
	if err := s.users.SetTwoStep(ctx, userID, false); err != nil {
		return fmt.Errorf("disable two-step: %w", err)
	}

	s.logger.InfoContext(ctx, "two-step verification disabled",
		slog.String("user_id", userID),
	)

	return nil
}

// --- Profile ---

// GetProfile retrieves an account by its ID.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update. At least one field must be
// provided.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	if input.FullName == nil && input.Phone == nil && input.Age == nil && input.Address == nil && input.Gender == nil {
		return nil, apperrors.InvalidInput("at least one field must be provided")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}

	if input.FullName != nil {
		if strings.TrimSpace(*input.FullName) == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		user.FirstName, user.LastName = domain.SplitFullName(*input.FullName)
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.Age != nil {
		if *input.Age <= 0 {
			return nil, apperrors.InvalidInput("age must be positive")
		}
		user.Age = *input.Age
	}
	if input.Address != nil {
		user.Address = *input.Address
	}
	if input.Gender != nil {
		if *input.Gender != domain.GenderMale && *input.Gender != domain.GenderFemale {
			return nil, apperrors.InvalidInput("gender must be male or female")
		}
		user.Gender = *input.Gender
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// UpdateEmail sets a new email address, clears the confirmed flag, and emails
// a fresh confirmation code to the new address.
func (s *AccountService) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	if newEmail == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NotFound("account", userID)
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	otpHash, err := auth.HashSecret(otp)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	expiresAt := time.Now().UTC().Add(confirmOTPTTL)
	if err := s.users.UpdateEmail(ctx, user.ID, newEmail, otpHash, expiresAt); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return apperrors.EmailInUse(newEmail)
		}
		return fmt.Errorf("update email: %w", err)
	}

	s.emitOTP(ctx, user.ID, newEmail, "Confirm your email", otp, event.PurposeConfirmEmail)

	s.logger.InfoContext(ctx, "email updated",
		slog.String("user_id", user.ID),
	)

	return nil
}

// Deactivate flips the account inactive. Sign-in fails until reactivated.
func (s *AccountService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	s.logger.InfoContext(ctx, "account deactivated",
		slog.String("user_id", userID),
	)

	return nil
}

// Reactivate flips the account active again.
func (s *AccountService) Reactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, true); err != nil {
		return fmt.Errorf("reactivate account: %w", err)
	}

	s.logger.InfoContext(ctx, "account reactivated",
		slog.String("user_id", userID),
	)

	return nil
}

// --- Profile images ---

// UploadProfileImage stores an avatar through the service and records its
// key on the account.
func (s *AccountService) UploadProfileImage(ctx context.Context, userID string, input UploadImageInput) (string, error) {
	if input.Data == nil || input.Size <= 0 {
		return "", apperrors.InvalidInput("image payload is required")
	}

	key := avatarKey(userID, input.Filename)
	result, err := s.store.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: input.ContentType,
		Size:        input.Size,
		Data:        input.Data,
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	if err := s.users.UpdateImage(ctx, userID, result.Key); err != nil {
		return "", fmt.Errorf("record image key: %w", err)
	}

	s.logger.InfoContext(ctx, "profile image uploaded",
		slog.String("user_id", userID),
		slog.String("key", result.Key),
	)

	return result.URL, nil
}

// UploadCoverImages stores a batch of cover images and returns their keys
// and URLs. Cover images are not recorded on the account; the returned keys
// are the client's handle.
func (s *AccountService) UploadCoverImages(ctx context.Context, userID string, inputs []UploadImageInput) ([]StoredImage, error) {
	if len(inputs) == 0 {
		return nil, apperrors.InvalidInput("at least one image is required")
	}

	uploads := make([]StoredImage, 0, len(inputs))
	for _, input := range inputs {
		if input.Data == nil || input.Size <= 0 {
			return nil, apperrors.InvalidInput("image payload is required")
		}

		key := coverKey(userID, input.Filename)
		result, err := s.store.Upload(ctx, &storage.UploadInput{
			Key:         key,
			ContentType: input.ContentType,
			Size:        input.Size,
			Data:        input.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
		uploads = append(uploads, StoredImage{Key: result.Key, URL: result.URL})
	}

	s.logger.InfoContext(ctx, "cover images uploaded",
		slog.String("user_id", userID),
		slog.Int("count", len(uploads)),
	)

	return uploads, nil
}

// PresignProfileImage mints a time-limited URL for a direct avatar upload.
// The client PUTs the bytes itself; only the key crosses back through the
// service.
func (s *AccountService) PresignProfileImage(ctx context.Context, userID, filename, contentType string) (*PresignedUpload, error) {
	if contentType == "" {
		return nil, apperrors.InvalidInput("content type is required")
	}

	key := avatarKey(userID, filename)
	url, err := s.presigner.PresignPut(key, contentType, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	if err := s.users.UpdateImage(ctx, userID, key); err != nil {
		return nil, fmt.Errorf("record image key: %w", err)
	}

	s.logger.InfoContext(ctx, "profile image upload presigned",
		slog.String("user_id", userID),
		slog.String("key", key),
	)

	return &PresignedUpload{Key: key, URL: url}, nil
}

// --- Helpers ---

// issueOTP generates a fresh code, stores its hash with the given lifetime,
// and emits the delivery event with the plaintext.
func (s *AccountService) issueOTP(ctx context.Context, user *domain.User, subject, purpose string, ttl time.Duration) error {
	otp, err := auth.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	otpHash, err := auth.HashSecret(otp)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	expiresAt := time.Now().UTC().Add(ttl)
	if err := s.users.SetOTP(ctx, user.ID, otpHash, expiresAt); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	s.emitOTP(ctx, user.ID, user.Email, subject, otp, purpose)
	return nil
}

// emitOTP publishes the delivery event. The mailer owns retries; a publish
// failure is logged but does not fail the operation.
func (s *AccountService) emitOTP(ctx context.Context, userID, email, subject, otp, purpose string) {
	err := s.producer.PublishEmailOTP(ctx, userID, event.EmailOTPData{
		Email:   email,
		Subject: subject,
		OTP:     otp,
		Purpose: purpose,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email.otp event",
			slog.String("user_id", userID),
			slog.String("purpose", purpose),
			slog.String("error", err.Error()),
		)
	}
}

// checkOTP validates a presented code against the account's pending OTP.
// Expiry wins over mismatch: an expired code fails with OTPExpired even when
// it matches.
func checkOTP(user *domain.User, code string) error {
	if !auth.ValidOTPShape(code) {
		return apperrors.InvalidOTP()
	}
	if user.OTPHash == "" {
		return apperrors.InvalidOTP()
	}
	if user.OTPExpiresAt == nil || !time.Now().UTC().Before(*user.OTPExpiresAt) {
		return apperrors.OTPExpired()
	}
	if !auth.VerifySecret(code, user.OTPHash) {
		return apperrors.InvalidOTP()
	}
	return nil
}

// avatarKey builds a unique storage key for a profile image, keeping the
// original extension when present.
func avatarKey(userID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New().String(), ext)
}

func coverKey(userID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("covers/%s/%s%s", userID, uuid.New().String(), ext)
}

// validatePassword checks that the password meets minimum complexity
// requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
