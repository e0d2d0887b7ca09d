package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hazemadel/accounts/internal/domain"
	apperrors "github.com/hazemadel/accounts/pkg/errors"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// the same surface, which keeps the tests in-process.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed account repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, password_hash, phone, age, address, image, gender,
		role, provider, two_step_enabled, otp_hash, otp_expires_at, confirmed, is_active,
		credentials_changed_at, deleted_at, created_at, updated_at`

// Create inserts a new account into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, password_hash, phone, age, address, image, gender,
			role, provider, two_step_enabled, otp_hash, otp_expires_at, confirmed, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.Age,
		u.Address,
		u.Image,
		u.Gender,
		u.Role,
		u.Provider,
		u.TwoStepEnabled,
		nullable(u.OTPHash),
		u.OTPExpiresAt,
		u.Confirmed,
		u.IsActive,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", u.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID. Soft-deleted rows are excluded.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves an account by its email address. Soft-deleted rows
// are excluded.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`

	return r.scanUser(ctx, query, email)
}

// Update applies a partial profile update. Credentials, OTP state, and
// lifecycle flags have dedicated operations.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, age = $4, address = $5,
		    image = $6, gender = $7, updated_at = $8
		WHERE id = $9 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Age,
		u.Address,
		u.Image,
		u.Gender,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", u.ID)
	}

	return nil
}

// SetOTP stores a pending hashed one-time code with its expiry.
func (r *UserRepository) SetOTP(ctx context.Context, id, otpHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET otp_hash = $1, otp_expires_at = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, otpHash, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// ConfirmEmail atomically clears the pending OTP and marks the account
// confirmed. The WHERE guard on otp_hash makes a second concurrent call find
// no pending OTP and fail closed.
func (r *UserRepository) ConfirmEmail(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET otp_hash = NULL, otp_expires_at = NULL, confirmed = TRUE, updated_at = $1
		WHERE id = $2 AND otp_hash IS NOT NULL AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("confirm email: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ConsumeOTP atomically clears the pending OTP.
func (r *UserRepository) ConsumeOTP(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET otp_hash = NULL, otp_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND otp_hash IS NOT NULL AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// EnableTwoStep atomically clears the pending OTP and enables two-step
// verification.
func (r *UserRepository) EnableTwoStep(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET otp_hash = NULL, otp_expires_at = NULL, two_step_enabled = TRUE, updated_at = $1
		WHERE id = $2 AND otp_hash IS NOT NULL AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("enable two-step: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// SetTwoStep sets the two-step flag without touching the OTP.
func (r *UserRepository) SetTwoStep(ctx context.Context, id string, enabled bool) error {
	query := `
		UPDATE users
		SET two_step_enabled = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set two-step: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// ResetPassword atomically clears the pending OTP, writes the new password
// hash, and stamps the credential-change watermark.
func (r *UserRepository) ResetPassword(ctx context.Context, id, passwordHash string) (bool, error) {
	now := time.Now().UTC()
	query := `
		UPDATE users
		SET otp_hash = NULL, otp_expires_at = NULL, password_hash = $1,
		    credentials_changed_at = $2, updated_at = $2
		WHERE id = $3 AND otp_hash IS NOT NULL AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, passwordHash, now, id)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ChangePassword writes the new password hash and stamps the
// credential-change watermark.
func (r *UserRepository) ChangePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC()
	query := `
		UPDATE users
		SET password_hash = $1, credentials_changed_at = $2, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, passwordHash, now, id)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// UpdateEmail sets a new email, clears the confirmed flag, and stores the
// pending confirmation OTP.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email, otpHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET email = $1, confirmed = FALSE, otp_hash = $2, otp_expires_at = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, email, otpHash, expiresAt, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", email)
		}
		return fmt.Errorf("update email: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// StampCredentialsChanged sets the credential-change watermark to now.
func (r *UserRepository) StampCredentialsChanged(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `
		UPDATE users
		SET credentials_changed_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("stamp credentials changed: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// SetActive flips the account's active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE users
		SET is_active = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// UpdateImage stores the profile image key.
func (r *UserRepository) UpdateImage(ctx context.Context, id, imageKey string) error {
	query := `
		UPDATE users
		SET image = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, imageKey, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update image: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}

	return nil
}

// scanUser executes a query expected to return a single account row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	var otpHash *string

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Age,
		&u.Address,
		&u.Image,
		&u.Gender,
		&u.Role,
		&u.Provider,
		&u.TwoStepEnabled,
		&otpHash,
		&u.OTPExpiresAt,
		&u.Confirmed,
		&u.IsActive,
		&u.CredentialsChangedAt,
		&u.DeletedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if otpHash != nil {
		u.OTPHash = *otpHash
	}

	return &u, nil
}

// nullable maps the empty string to NULL so the otp_hash IS NOT NULL guards
// stay meaningful.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
