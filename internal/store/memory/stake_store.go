package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// StakeStore implements domain.StakeStore.
type StakeStore struct {
	db *DB
}

// NewStakeStore creates a StakeStore over db.
func NewStakeStore(db *DB) *StakeStore {
	return &StakeStore{db: db}
}

// Get returns the participant's stake, zero-valued if none exists.
func (s *StakeStore) Get(_ context.Context, matchID uint64, participant common.Address) (domain.Stake, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	st, ok := s.db.stakes[participantKey{matchID, participant}]
	if !ok {
		return domain.Stake{MatchID: matchID, Participant: participant}, nil
	}
	return st, nil
}

// ListByMatch returns every stake on a match ordered by participant.
func (s *StakeStore) ListByMatch(_ context.Context, matchID uint64) ([]domain.Stake, error) {
	s.db.mu.RLock()
	var out []domain.Stake
	for k, st := range s.db.stakes {
		if k.matchID == matchID {
			out = append(out, st)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Participant.Cmp(out[j].Participant) < 0
	})
	return out, nil
}

// Apply stores the match and the stake under one lock.
func (s *StakeStore) Apply(_ context.Context, m domain.Match, st domain.Stake) error {
	if m.ID != st.MatchID {
		return fmt.Errorf("memory: apply stake: match id mismatch %d != %d", m.ID, st.MatchID)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.matches[m.ID]; !ok {
		return fmt.Errorf("memory: apply stake %d: %w", m.ID, domain.ErrNotFound)
	}
	s.db.matches[m.ID] = m
	s.db.stakes[participantKey{st.MatchID, st.Participant}] = st
	return nil
}
