package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// CreateMatch registers a new match in the Created state.
func (e *Engine) CreateMatch(ctx context.Context, caller common.Address, id uint64, startTime time.Time, feeBps uint16) (domain.Match, error) {
	var created domain.Match
	err := e.locked(ctx, "create", id, func(ctx context.Context) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if _, err := e.matches.GetByID(ctx, id); err == nil {
			return domain.ErrAlreadyExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if feeBps > domain.MaxFeeBps {
			return fmt.Errorf("%w: %d bps", domain.ErrFeeTooHigh, feeBps)
		}

		created = domain.Match{
			ID:        id,
			StartTime: startTime.UTC(),
			Status:    domain.MatchStatusCreated,
			Result:    domain.OutcomeNone,
			FeeBps:    feeBps,
			CreatedAt: e.now().UTC(),
		}
		if err := e.matches.Create(ctx, created); err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "match created",
			slog.Uint64("match_id", id),
			slog.Time("start_time", created.StartTime),
			slog.Int("fee_bps", int(feeBps)),
		)
		e.emit(ctx, domain.Notification{
			Kind:      domain.NotifyMatchCreated,
			MatchID:   id,
			StartTime: created.StartTime,
		})
		return nil
	})
	return created, err
}

// OpenMatch moves a Created match to Open.
func (e *Engine) OpenMatch(ctx context.Context, caller common.Address, id uint64) error {
	return e.transition(ctx, caller, "open", id, domain.MatchStatusCreated, domain.MatchStatusOpen, domain.NotifyMatchOpened)
}

// CloseMatch moves an Open match to Closed. Staking stops immediately.
func (e *Engine) CloseMatch(ctx context.Context, caller common.Address, id uint64) error {
	return e.transition(ctx, caller, "close", id, domain.MatchStatusOpen, domain.MatchStatusClosed, domain.NotifyMatchClosed)
}

func (e *Engine) transition(ctx context.Context, caller common.Address, op string, id uint64, from, to domain.MatchStatus, kind domain.NotificationKind) error {
	return e.locked(ctx, op, id, func(ctx context.Context) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != from {
			return fmt.Errorf("%w: %s", domain.ErrBadStatus, m.Status)
		}

		m.Status = to
		if err := e.matches.Update(ctx, m); err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "match "+to.String(), slog.Uint64("match_id", id))
		e.emit(ctx, domain.Notification{Kind: kind, MatchID: id})
		return nil
	})
}

// CancelMatch finalizes a match without a result. Participants may then
// recover their gross stakes with RefundOnCancelled.
func (e *Engine) CancelMatch(ctx context.Context, caller common.Address, id uint64) error {
	return e.locked(ctx, "cancel", id, func(ctx context.Context) error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status.Finalized() {
			return fmt.Errorf("%w: %s", domain.ErrBadStatus, m.Status)
		}

		now := e.now().UTC()
		m.Status = domain.MatchStatusCancelled
		m.Result = domain.OutcomeNone
		m.SettledBy = caller
		m.FinalizedAt = &now
		if err := e.matches.Update(ctx, m); err != nil {
			return err
		}

		e.logger.InfoContext(ctx, "match cancelled",
			slog.Uint64("match_id", id),
			slog.String("by", caller.Hex()),
			slog.String("total_staked", m.TotalStaked.Dec()),
		)
		e.emit(ctx, domain.Notification{
			Kind:    domain.NotifyMatchSettled,
			MatchID: id,
			Account: caller,
			Outcome: domain.OutcomeNone,
		})
		return nil
	})
}

// Match returns the current state of a match.
func (e *Engine) Match(ctx context.Context, id uint64) (domain.Match, error) {
	m, err := e.matches.GetByID(ctx, id)
	if err != nil {
		return domain.Match{}, fmt.Errorf("wager: match %d: %w", id, err)
	}
	return m, nil
}

// Matches lists matches.
func (e *Engine) Matches(ctx context.Context, q domain.MatchQuery) ([]domain.Match, error) {
	return e.matches.List(ctx, q)
}
