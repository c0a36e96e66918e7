package domain

import (
	"context"
	"time"
)

// MatchCache provides fast match lookups for the read path.
type MatchCache interface {
	Set(ctx context.Context, m Match) error
	Get(ctx context.Context, id uint64) (Match, error)
	Invalidate(ctx context.Context, id uint64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	// Acquire takes key for ttl or fails with ErrLockHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held distributed lock.
type Lock interface {
	// Extend resets the expiry to ttl from now. It returns ErrLockLost once
	// the lock has expired or passed to another holder.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives the lock up. Safe to call more than once.
	Release()
}

// NonceStore records single-use keys such as signed request digests.
type NonceStore interface {
	// Use records key for ttl. It reports false when key is already
	// recorded and has not expired.
	Use(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
