package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Role distinguishes ordinary users from administrators. Tokens for the two
// roles are signed with different keys.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// Gender is an optional profile attribute.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// User represents a registered account.
//
// PasswordHash is empty for federated accounts; such accounts never hold a
// password credential. OTPHash and OTPExpiresAt carry the currently pending
// one-time code, if any. CredentialsChangedAt is the watermark that
// invalidates tokens issued before a credential change or a global logout.
type User struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Phone          string     `json:"phone,omitempty"`
	Age            int        `json:"age,omitempty"`
	Address        string     `json:"address,omitempty"`
	Image          string     `json:"image,omitempty"`
	Gender         Gender     `json:"gender,omitempty"`
	Role           Role       `json:"role"`
	Provider       Provider   `json:"provider"`
	TwoStepEnabled bool       `json:"two_step_enabled"`
	OTPHash        string     `json:"-"`
	OTPExpiresAt   *time.Time `json:"-"`
	Confirmed      bool       `json:"confirmed"`
	IsActive       bool       `json:"is_active"`

	CredentialsChangedAt *time.Time `json:"-"`
	DeletedAt            *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName composes the display name from the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SplitFullName splits a display name into first and last name. Everything
// after the first word goes to the last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	last = strings.Join(parts[1:], " ")
	return first, last
}

// OTPValidAt reports whether a pending one-time code exists and has not
// expired at the given instant.
func (u *User) OTPValidAt(now time.Time) bool {
	return u.OTPHash != "" && u.OTPExpiresAt != nil && now.Before(*u.OTPExpiresAt)
}

// MarshalJSON adds the composed full_name to the serialized user.
func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{
		alias:    alias(u),
		FullName: u.FullName(),
	})
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RevokedToken records a token placed on the revocation ledger. The entry
// only needs to live until the token would have expired anyway.
type RevokedToken struct {
	TokenID   string
	UserID    string
	ExpiresAt time.Time
}
