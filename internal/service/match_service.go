// Package service holds read-side facades over the wagering engine used by
// the HTTP layer.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/wager"
)

// MatchReader is the read surface of wager.Engine.
type MatchReader interface {
	Match(ctx context.Context, id uint64) (domain.Match, error)
	Matches(ctx context.Context, q domain.MatchQuery) ([]domain.Match, error)
	Stake(ctx context.Context, id uint64, participant common.Address) (domain.Stake, error)
	Stakes(ctx context.Context, id uint64) ([]domain.Stake, error)
	Claimed(ctx context.Context, id uint64, participant common.Address) (bool, error)
}

// Position is one participant's view of a match.
type Position struct {
	Match   domain.Match
	Stake   domain.Stake
	Total   *uint256.Int
	Payout  *uint256.Int // claimable winnings once settled
	Refund  *uint256.Int // claimable refund once cancelled
	Claimed bool
}

// MatchService serves match reads, checking the cache first and falling back
// to the engine on a miss.
type MatchService struct {
	engine MatchReader
	cache  domain.MatchCache
	logger *slog.Logger
}

// NewMatchService creates a MatchService. cache may be nil.
func NewMatchService(engine MatchReader, cache domain.MatchCache, logger *slog.Logger) *MatchService {
	return &MatchService{
		engine: engine,
		cache:  cache,
		logger: logger.With(slog.String("component", "match_service")),
	}
}

// GetMatch retrieves a match by id.
func (s *MatchService) GetMatch(ctx context.Context, id uint64) (domain.Match, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.engine.Match(ctx, id)
	if err != nil {
		return domain.Match{}, fmt.Errorf("match_service: get %d: %w", id, err)
	}

	// Back-fill the cache; a failed write only costs the next reader a miss.
	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("match_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// ListMatches returns matches straight from the engine.
func (s *MatchService) ListMatches(ctx context.Context, q domain.MatchQuery) ([]domain.Match, error) {
	matches, err := s.engine.Matches(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("match_service: list: %w", err)
	}
	return matches, nil
}

// ListStakes returns every stake on a match.
func (s *MatchService) ListStakes(ctx context.Context, id uint64) ([]domain.Stake, error) {
	if _, err := s.engine.Match(ctx, id); err != nil {
		return nil, fmt.Errorf("match_service: stakes %d: %w", id, err)
	}
	stakes, err := s.engine.Stakes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("match_service: stakes %d: %w", id, err)
	}
	return stakes, nil
}

// Position assembles participant's stake and entitlement on a match. It
// always reads through to the engine so the figures are never stale.
func (s *MatchService) Position(ctx context.Context, id uint64, participant common.Address) (Position, error) {
	m, err := s.engine.Match(ctx, id)
	if err != nil {
		return Position{}, fmt.Errorf("match_service: position %d: %w", id, err)
	}
	st, err := s.engine.Stake(ctx, id, participant)
	if err != nil {
		return Position{}, fmt.Errorf("match_service: position %d: %w", id, err)
	}
	claimed, err := s.engine.Claimed(ctx, id, participant)
	if err != nil {
		return Position{}, fmt.Errorf("match_service: position %d: %w", id, err)
	}

	total, err := st.Total()
	if err != nil {
		return Position{}, err
	}
	payout, err := wager.Payout(m, st)
	if err != nil {
		return Position{}, err
	}

	pos := Position{
		Match:   m,
		Stake:   st,
		Total:   total,
		Payout:  payout,
		Refund:  new(uint256.Int),
		Claimed: claimed,
	}
	if m.Status == domain.MatchStatusCancelled {
		pos.Refund = total
	}
	return pos, nil
}
