package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	matchTTL = 5 * time.Minute
	// finalizedMatchTTL is longer because a finalized match never changes.
	finalizedMatchTTL = time.Hour
)

// MatchCache implements domain.MatchCache using Redis hashes holding the
// JSON encoding of a Match.
//
// Key schema:
//
//	match:{id} - hash with field "data" containing JSON
type MatchCache struct {
	c *Client
}

// NewMatchCache creates a MatchCache backed by the given Client.
func NewMatchCache(c *Client) *MatchCache {
	return &MatchCache{c: c}
}

func (mc *MatchCache) matchKey(id uint64) string {
	return mc.c.Key("match:" + strconv.FormatUint(id, 10))
}

// Set stores a Match in the cache.
func (mc *MatchCache) Set(ctx context.Context, m domain.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal match %d: %w", m.ID, err)
	}

	ttl := matchTTL
	if m.Status.Finalized() {
		ttl = finalizedMatchTTL
	}

	key := mc.matchKey(m.ID)
	pipe := mc.c.Underlying().TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set match %d: %w", m.ID, err)
	}
	return nil
}

// Get retrieves a Match by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MatchCache) Get(ctx context.Context, id uint64) (domain.Match, error) {
	data, err := mc.c.Underlying().HGet(ctx, mc.matchKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("redis: get match %d: %w", id, err)
	}

	var m domain.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Match{}, fmt.Errorf("redis: unmarshal match %d: %w", id, err)
	}
	return m, nil
}

// Invalidate removes a Match from the cache.
func (mc *MatchCache) Invalidate(ctx context.Context, id uint64) error {
	if err := mc.c.Underlying().Del(ctx, mc.matchKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate match %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MatchCache = (*MatchCache)(nil)
