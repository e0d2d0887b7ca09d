// Package idp verifies tokens from external identity providers.
package idp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hazemadel/accounts/pkg/httpclient"
)

// GoogleJWKSURL is where Google publishes the keys its ID tokens are
// signed with.
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = map[string]struct{}{
	"https://accounts.google.com": {},
	"accounts.google.com":         {},
}

// Profile is the identity extracted from a verified provider token.
type Profile struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google ID tokens against Google's published JWKS.
type GoogleVerifier struct {
	audience string
	keys     jwt.Keyfunc
	closer   func()
}

// NewGoogleVerifier builds a verifier for the given OAuth client ID. The JWKS
// is fetched through the circuit-broken HTTP client and refreshed in the
// background.
func NewGoogleVerifier(ctx context.Context, clientID string, client *httpclient.CircuitBreakerClient, logger *slog.Logger) (*GoogleVerifier, error) {
	jwks, err := keyfunc.Get(GoogleJWKSURL, keyfunc.Options{
		Ctx:    ctx,
		Client: client.StandardClient(),
		RefreshErrorHandler: func(err error) {
			logger.Warn("google jwks refresh failed", slog.String("error", err.Error()))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch google jwks: %w", err)
	}

	return &GoogleVerifier{
		audience: clientID,
		keys:     jwks.Keyfunc,
		closer:   jwks.EndBackground,
	}, nil
}

// newVerifierWithKeyfunc exists for tests, which substitute a local keyfunc
// for the live JWKS endpoint.
func newVerifierWithKeyfunc(clientID string, keys jwt.Keyfunc) *GoogleVerifier {
	return &GoogleVerifier{audience: clientID, keys: keys, closer: func() {}}
}

// Verify validates the ID token's signature, expiry, audience, and issuer,
// and returns the embedded profile.
func (v *GoogleVerifier) Verify(_ context.Context, idToken string) (*Profile, error) {
	token, err := jwt.ParseWithClaims(idToken, &googleClaims{}, v.keys,
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify google id token: %w", err)
	}

	claims, ok := token.Claims.(*googleClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid google id token claims")
	}

	if _, ok := googleIssuers[claims.Issuer]; !ok {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("google id token missing email claim")
	}

	return &Profile{
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// Close stops the background JWKS refresh.
func (v *GoogleVerifier) Close() {
	if v.closer != nil {
		v.closer()
	}
}
