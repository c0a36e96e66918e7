package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// NonceStore implements domain.NonceStore with SETNX, so a key is accepted
// once across every instance sharing the Redis database.
type NonceStore struct {
	c *Client
}

// NewNonceStore creates a NonceStore backed by the given Client.
func NewNonceStore(c *Client) *NonceStore {
	return &NonceStore{c: c}
}

func (n *NonceStore) nonceKey(key string) string {
	return n.c.Key("nonce:" + key)
}

// Use records key for ttl.
func (n *NonceStore) Use(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := n.c.Underlying().SetNX(ctx, n.nonceKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: use nonce: %w", err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.NonceStore = (*NonceStore)(nil)
