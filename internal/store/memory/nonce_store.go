package memory

import (
	"context"
	"sync"
	"time"
)

// NonceStore implements domain.NonceStore in process. Expired keys are
// swept on write.
type NonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewNonceStore creates an empty NonceStore. now may be nil.
func NewNonceStore(now func() time.Time) *NonceStore {
	if now == nil {
		now = time.Now
	}
	return &NonceStore{seen: make(map[string]time.Time), now: now}
}

// Use records key until now+ttl.
func (s *NonceStore) Use(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}
