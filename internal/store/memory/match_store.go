package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// MatchStore implements domain.MatchStore.
type MatchStore struct {
	db *DB
}

// NewMatchStore creates a MatchStore over db.
func NewMatchStore(db *DB) *MatchStore {
	return &MatchStore{db: db}
}

// Create inserts a new match.
func (s *MatchStore) Create(_ context.Context, m domain.Match) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.matches[m.ID]; ok {
		return fmt.Errorf("memory: create match %d: %w", m.ID, domain.ErrAlreadyExists)
	}
	s.db.matches[m.ID] = m
	return nil
}

// GetByID returns a match or domain.ErrNotFound.
func (s *MatchStore) GetByID(_ context.Context, id uint64) (domain.Match, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	m, ok := s.db.matches[id]
	if !ok {
		return domain.Match{}, fmt.Errorf("memory: match %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// Update replaces an existing match.
func (s *MatchStore) Update(_ context.Context, m domain.Match) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.matches[m.ID]; !ok {
		return fmt.Errorf("memory: update match %d: %w", m.ID, domain.ErrNotFound)
	}
	s.db.matches[m.ID] = m
	return nil
}

// List returns matches ordered by id.
func (s *MatchStore) List(_ context.Context, q domain.MatchQuery) ([]domain.Match, error) {
	s.db.mu.RLock()
	out := make([]domain.Match, 0, len(s.db.matches))
	for _, m := range s.db.matches {
		if q.Status != nil && m.Status != *q.Status {
			continue
		}
		if q.Since != nil && m.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && !m.CreatedAt.Before(*q.Until) {
			continue
		}
		out = append(out, m)
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, q.Offset, q.Limit), nil
}

// ListFinalizedBefore returns settled or cancelled matches finalized
// strictly before the cutoff.
func (s *MatchStore) ListFinalizedBefore(_ context.Context, before time.Time, limit int) ([]domain.Match, error) {
	s.db.mu.RLock()
	var out []domain.Match
	for _, m := range s.db.matches {
		if m.Status.Finalized() && m.FinalizedAt != nil && m.FinalizedAt.Before(before) {
			out = append(out, m)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FinalizedAt.Before(*out[j].FinalizedAt) })
	return paginate(out, 0, limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
