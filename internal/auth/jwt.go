package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hazemadel/accounts/internal/domain"
)

// TokenClass distinguishes short-lived access tokens from long-lived refresh
// tokens. Each class has its own signing keys.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// Claims represents the JWT claims carried by both token classes.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Keyring holds the four signing keys (access/refresh x user/admin) and the
// two recognized bearer prefixes. Admin sessions live in an entirely separate
// key space from user sessions, so compromising one does not compromise the
// other.
type Keyring struct {
	accessUser   []byte
	accessAdmin  []byte
	refreshUser  []byte
	refreshAdmin []byte

	userPrefix  string
	adminPrefix string
}

// KeyringConfig carries the raw key material and prefixes for a Keyring.
type KeyringConfig struct {
	AccessUserSecret   string
	AccessAdminSecret  string
	RefreshUserSecret  string
	RefreshAdminSecret string
	UserPrefix         string
	AdminPrefix        string
}

// NewKeyring builds a Keyring from configuration.
func NewKeyring(cfg KeyringConfig) *Keyring {
	return &Keyring{
		accessUser:   []byte(cfg.AccessUserSecret),
		accessAdmin:  []byte(cfg.AccessAdminSecret),
		refreshUser:  []byte(cfg.RefreshUserSecret),
		refreshAdmin: []byte(cfg.RefreshAdminSecret),
		userPrefix:   cfg.UserPrefix,
		adminPrefix:  cfg.AdminPrefix,
	}
}

// SigningKey returns the key used to issue a token of the given class for
// the given role.
func (k *Keyring) SigningKey(class TokenClass, role domain.Role) []byte {
	if role == domain.RoleAdmin {
		if class == ClassRefresh {
			return k.refreshAdmin
		}
		return k.accessAdmin
	}
	if class == ClassRefresh {
		return k.refreshUser
	}
	return k.accessUser
}

// Select maps (token class, caller-declared bearer prefix) to a verification
// key. An unrecognized prefix yields (nil, false) and the caller must treat
// the request as unauthenticated.
func (k *Keyring) Select(class TokenClass, prefix string) ([]byte, bool) {
	switch prefix {
	case k.userPrefix:
		if class == ClassRefresh {
			return k.refreshUser, true
		}
		return k.accessUser, true
	case k.adminPrefix:
		if class == ClassRefresh {
			return k.refreshAdmin, true
		}
		return k.accessAdmin, true
	default:
		return nil, false
	}
}

// PrefixFor returns the bearer prefix clients should present for the role.
func (k *Keyring) PrefixFor(role domain.Role) string {
	if role == domain.RoleAdmin {
		return k.adminPrefix
	}
	return k.userPrefix
}

// Manager issues and verifies tokens against a Keyring.
type Manager struct {
	keyring    *Keyring
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager creates a token manager with the given keyring and lifetimes.
func NewManager(keyring *Keyring, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		keyring:    keyring,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Keyring exposes the manager's keyring for callers that need prefix or key
// selection directly.
func (m *Manager) Keyring() *Keyring {
	return m.keyring
}

// TTL returns the configured lifetime for the given token class.
func (m *Manager) TTL(class TokenClass) time.Duration {
	if class == ClassRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

// Issue creates a signed token of the given class for the user. Every call
// embeds a fresh random jti, independent of any other token issued in the
// same request, so each token can be revoked on its own.
func (m *Manager) Issue(user *domain.User, class TokenClass) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(class))),
			Issuer:    "accounts",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.keyring.SigningKey(class, user.Role))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", class, err)
	}

	return signed, nil
}

// IssuePair issues an access and refresh token for the user. The two tokens
// carry distinct jtis.
func (m *Manager) IssuePair(user *domain.User) (*domain.TokenPair, error) {
	access, err := m.Issue(user, ClassAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := m.Issue(user, ClassRefresh)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify parses and validates a token against the given key, returning its
// claims. Malformed tokens, wrong keys, expired and not-yet-valid tokens all
// fail.
func (m *Manager) Verify(tokenString string, key []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
