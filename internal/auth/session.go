package auth

import (
	"context"
	"strings"
	"time"

	"github.com/hazemadel/accounts/internal/domain"
	apperrors "github.com/hazemadel/accounts/pkg/errors"
)

// UserSource resolves accounts during session validation.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RevocationChecker answers whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionValidator walks a bearer token through the full validation chain:
// extract, signature selection, verification, account lookup, revocation
// check, and credential freshness. Every failure collapses to the same
// Unauthorized error so clients cannot probe which check rejected them.
type SessionValidator struct {
	tokens *Manager
	users  UserSource
	ledger RevocationChecker
}

// NewSessionValidator wires a validator from its collaborators.
func NewSessionValidator(tokens *Manager, users UserSource, ledger RevocationChecker) *SessionValidator {
	return &SessionValidator{tokens: tokens, users: users, ledger: ledger}
}

func unauthorized() error {
	return apperrors.Unauthorized("unauthorized")
}

// Validate authenticates the raw Authorization header value for the declared
// token class, returning the resolved account and the decoded claims.
func (v *SessionValidator) Validate(ctx context.Context, authorization string, class TokenClass) (*domain.User, *Claims, error) {
	prefix, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || prefix == "" || token == "" {
		return nil, nil, unauthorized()
	}

	key, ok := v.tokens.Keyring().Select(class, prefix)
	if !ok {
		return nil, nil, unauthorized()
	}

	claims, err := v.tokens.Verify(token, key)
	if err != nil {
		return nil, nil, unauthorized()
	}

	user, err := v.users.GetByEmail(ctx, claims.Email)
	if err != nil || user == nil {
		return nil, nil, unauthorized()
	}

	if claims.ID == "" {
		return nil, nil, unauthorized()
	}
	revoked, err := v.ledger.IsRevoked(ctx, claims.ID)
	if err != nil || revoked {
		return nil, nil, unauthorized()
	}

	// A credential-change watermark later than the token's issue time means
	// the token predates a password change or a global logout.
	if user.CredentialsChangedAt != nil {
		if claims.IssuedAt == nil {
			return nil, nil, unauthorized()
		}
		if user.CredentialsChangedAt.After(claims.IssuedAt.Time) {
			return nil, nil, unauthorized()
		}
	}

	return user, claims, nil
}

// ExpiresAt returns the token expiry from claims, or the zero time when the
// claim is absent.
func ExpiresAt(claims *Claims) time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
