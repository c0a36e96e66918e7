package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// PlaceStake pulls amount from caller into escrow and credits it to
// outcome. Repeated stakes accumulate.
func (e *Engine) PlaceStake(ctx context.Context, caller common.Address, id uint64, outcome domain.Outcome, amount *uint256.Int) (domain.Stake, error) {
	var placed domain.Stake
	err := e.locked(ctx, "stake", id, func(ctx context.Context) error {
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != domain.MatchStatusOpen {
			return fmt.Errorf("%w: %s", domain.ErrNotOpen, m.Status)
		}
		if amount == nil || amount.IsZero() {
			return domain.ErrZeroAmount
		}
		if !outcome.Valid() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidOutcome, outcome)
		}

		st, err := e.stakes.Get(ctx, id, caller)
		if err != nil {
			return err
		}

		// Compute the new balances first so an overflow aborts before any
		// funds move.
		slot := outcome.Slot()
		if err := addTo(&m.Totals[slot], amount); err != nil {
			return err
		}
		if err := addTo(&m.TotalStaked, amount); err != nil {
			return err
		}
		if err := addTo(&st.Amounts[slot], amount); err != nil {
			return err
		}
		st.MatchID = id
		st.Participant = caller
		st.UpdatedAt = e.now().UTC()

		if err := e.vault.TransferIn(ctx, caller, amount); err != nil {
			return err
		}
		if err := e.stakes.Apply(ctx, m, st); err != nil {
			if rerr := e.vault.TransferOut(ctx, caller, amount); rerr != nil {
				e.logger.ErrorContext(ctx, "stake refund after failed write",
					slog.Uint64("match_id", id),
					slog.String("participant", caller.Hex()),
					slog.String("amount", amount.Dec()),
					slog.String("error", rerr.Error()),
				)
				return errors.Join(err, rerr)
			}
			return err
		}
		placed = st

		e.observer.FundsMoved(FlowStake, amount)
		e.logger.InfoContext(ctx, "stake placed",
			slog.Uint64("match_id", id),
			slog.String("participant", caller.Hex()),
			slog.String("outcome", outcome.String()),
			slog.String("amount", amount.Dec()),
		)
		e.emit(ctx, domain.Notification{
			Kind:    domain.NotifyStakePlaced,
			MatchID: id,
			Account: caller,
			Outcome: outcome,
			Amount:  amountOf(amount),
		})
		return nil
	})
	return placed, err
}

// Stake returns a participant's stake on a match.
func (e *Engine) Stake(ctx context.Context, id uint64, participant common.Address) (domain.Stake, error) {
	if _, err := e.Match(ctx, id); err != nil {
		return domain.Stake{}, err
	}
	return e.stakes.Get(ctx, id, participant)
}

// Stakes lists every stake on a match.
func (e *Engine) Stakes(ctx context.Context, id uint64) ([]domain.Stake, error) {
	return e.stakes.ListByMatch(ctx, id)
}

// addTo adds v to z in place, failing on 256-bit overflow.
func addTo(z, v *uint256.Int) error {
	if _, overflow := z.AddOverflow(z, v); overflow {
		return domain.ErrArithmeticOverflow
	}
	return nil
}
