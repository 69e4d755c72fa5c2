package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client supplied idempotency keys for a while.
type IdempotencyStore interface {
	// Claim stores value under key when the key is free.
	// It returns the value held for the key and true when this call stored it.
	Claim(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)

	// Release forgets a key so the request can be retried.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a key keeps pointing at its first result.
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether Idempotency-Key headers are honoured
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
