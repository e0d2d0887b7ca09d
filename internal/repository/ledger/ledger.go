// Package ledger stores individually revoked tokens in Redis. Each entry
// lives only as long as the token it shadows would have, so the ledger prunes
// itself without a maintenance job.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

// minTTL keeps an entry briefly even when the token is already past its
// expiry, covering clock skew between the issuer and this host.
const minTTL = time.Minute

// RevocationLedger implements repository.RevocationLedger on Redis.
type RevocationLedger struct {
	client *redis.Client
}

// New creates a Redis-backed revocation ledger.
func New(client *redis.Client) *RevocationLedger {
	return &RevocationLedger{client: client}
}

// Revoke records the token id as revoked until expiresAt. A SET without
// conditions makes duplicate revocation of the same id a no-op.
func (l *RevocationLedger) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < minTTL {
		ttl = minTTL
	}

	if err := l.client.Set(ctx, keyPrefix+tokenID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked answers whether the token id is on the ledger.
func (l *RevocationLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation for %s: %w", tokenID, err)
	}
	return n > 0, nil
}
