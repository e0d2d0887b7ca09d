// Package presign issues and verifies HMAC-signed upload URLs. The
// signature covers the object key, content type, and expiry so a client
// cannot alter any of them after the URL is minted.
package presign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/hazemadel/accounts/pkg/errors"
)

// Signer mints presigned PUT URLs against a fixed upload endpoint.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// New creates a Signer. baseURL is the upload endpoint without a
// trailing slash, e.g. "https://uploads.example.com".
func New(secret, baseURL string) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: baseURL,
		now:     time.Now,
	}
}

// PresignPut returns a URL that authorizes a single PUT of the given
// key and content type until the TTL elapses.
func (s *Signer) PresignPut(key, contentType string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", apperrors.InvalidInput("upload key is required")
	}
	expires := s.now().Add(ttl).Unix()
	sig := s.sign(key, contentType, expires)

	q := url.Values{}
	q.Set("content-type", contentType)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", sig)

	return fmt.Sprintf("%s/%s?%s", s.baseURL, key, q.Encode()), nil
}

// Verify checks a presigned request's parameters. It returns an error
// when the signature does not match or the URL has expired.
func (s *Signer) Verify(key, contentType, expiresParam, signature string) error {
	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return apperrors.InvalidInput("invalid expiry")
	}
	if s.now().Unix() > expires {
		return apperrors.Unauthorized("upload URL expired")
	}
	expected := s.sign(key, contentType, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperrors.Unauthorized("invalid upload signature")
	}
	return nil
}

func (s *Signer) sign(key, contentType string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%d", key, contentType, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
