package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// ClaimStore implements domain.ClaimStore.
type ClaimStore struct {
	db *DB
}

// NewClaimStore creates a ClaimStore over db.
func NewClaimStore(db *DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// Get returns the claim or domain.ErrNotFound.
func (s *ClaimStore) Get(_ context.Context, matchID uint64, participant common.Address) (domain.Claim, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	c, ok := s.db.claims[participantKey{matchID, participant}]
	if !ok {
		return domain.Claim{}, fmt.Errorf("memory: claim %d/%s: %w", matchID, participant.Hex(), domain.ErrNotFound)
	}
	return c, nil
}

// MarkClaimed sets the claim flag.
func (s *ClaimStore) MarkClaimed(_ context.Context, c domain.Claim) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	k := participantKey{c.MatchID, c.Participant}
	if _, ok := s.db.claims[k]; ok {
		return domain.ErrAlreadyClaimed
	}
	s.db.claims[k] = c
	return nil
}

// Unmark clears the claim flag.
func (s *ClaimStore) Unmark(_ context.Context, matchID uint64, participant common.Address) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	delete(s.db.claims, participantKey{matchID, participant})
	return nil
}

// ListByMatch returns the claims on a match ordered by time.
func (s *ClaimStore) ListByMatch(_ context.Context, matchID uint64) ([]domain.Claim, error) {
	s.db.mu.RLock()
	var out []domain.Claim
	for k, c := range s.db.claims {
		if k.matchID == matchID {
			out = append(out, c)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	return out, nil
}
