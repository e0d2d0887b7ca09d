package repository

import (
	"context"
	"time"

	"github.com/hazemadel/accounts/internal/domain"
)

// UserRepository defines the interface for account persistence operations.
//
// The conditional mutations (ConfirmEmail, ConsumeOTP, EnableTwoStep,
// ResetPassword) return false without error when their guard did not hold,
// e.g. a concurrent call already consumed the pending OTP. Callers must fail
// closed on false.
type UserRepository interface {
	// Create inserts a new account. A unique violation on email surfaces as
	// an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves an account by its email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update applies a partial profile update. Only profile fields are
	// written; credentials and flags have dedicated operations.
	Update(ctx context.Context, user *domain.User) error

	// SetOTP stores a pending hashed one-time code with its expiry.
	SetOTP(ctx context.Context, id, otpHash string, expiresAt time.Time) error

	// ConfirmEmail atomically clears the pending OTP and marks the account
	// confirmed. Returns false when no OTP was pending.
	ConfirmEmail(ctx context.Context, id string) (bool, error)

	// ConsumeOTP atomically clears the pending OTP. Returns false when no
	// OTP was pending.
	ConsumeOTP(ctx context.Context, id string) (bool, error)

	// EnableTwoStep atomically clears the pending OTP and enables two-step
	// verification. Returns false when no OTP was pending.
	EnableTwoStep(ctx context.Context, id string) (bool, error)

	// SetTwoStep sets the two-step flag without touching the OTP.
	SetTwoStep(ctx context.Context, id string, enabled bool) error

	// ResetPassword atomically clears the pending OTP, writes the new
	// password hash, and stamps the credential-change watermark. Returns
	// false when no OTP was pending.
	ResetPassword(ctx context.Context, id, passwordHash string) (bool, error)

	// ChangePassword writes the new password hash and stamps the
	// credential-change watermark.
	ChangePassword(ctx context.Context, id, passwordHash string) error

	// UpdateEmail sets a new email, clears the confirmed flag, and stores
	// the pending confirmation OTP. A unique violation surfaces as an
	// AlreadyExists error.
	UpdateEmail(ctx context.Context, id, email, otpHash string, expiresAt time.Time) error

	// StampCredentialsChanged sets the credential-change watermark to now,
	// invalidating every token issued before this moment.
	StampCredentialsChanged(ctx context.Context, id string) error

	// SetActive flips the account's active flag.
	SetActive(ctx context.Context, id string, active bool) error

	// UpdateImage stores the profile image key.
	UpdateImage(ctx context.Context, id, imageKey string) error
}

// RevocationLedger records individually revoked tokens. Entries age out once
// past the token's own expiry.
type RevocationLedger interface {
	// Revoke records the token id as revoked until expiresAt. Revoking the
	// same id twice is not an error.
	Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error

	// IsRevoked answers whether the token id is on the ledger.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
