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

// Claim pays caller's winnings on a settled match exactly once.
func (e *Engine) Claim(ctx context.Context, caller common.Address, id uint64) (*uint256.Int, error) {
	var paid *uint256.Int
	err := e.locked(ctx, "claim", id, func(ctx context.Context) error {
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != domain.MatchStatusSettled {
			return fmt.Errorf("%w: %s", domain.ErrNotSettled, m.Status)
		}
		if err := e.checkUnclaimed(ctx, id, caller); err != nil {
			return err
		}
		st, err := e.stakes.Get(ctx, id, caller)
		if err != nil {
			return err
		}
		amount, err := Payout(m, st)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return domain.ErrNoWinningBet
		}

		if err := e.release(ctx, id, caller, domain.ClaimKindPayout, amount); err != nil {
			return err
		}
		paid = amount
		return nil
	})
	return paid, err
}

// RefundOnCancelled returns caller's gross stake on a cancelled match
// exactly once.
func (e *Engine) RefundOnCancelled(ctx context.Context, caller common.Address, id uint64) (*uint256.Int, error) {
	var refunded *uint256.Int
	err := e.locked(ctx, "refund", id, func(ctx context.Context) error {
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != domain.MatchStatusCancelled {
			return fmt.Errorf("%w: %s", domain.ErrNotCancelled, m.Status)
		}
		if err := e.checkUnclaimed(ctx, id, caller); err != nil {
			return err
		}
		st, err := e.stakes.Get(ctx, id, caller)
		if err != nil {
			return err
		}
		amount, err := Refund(st)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return domain.ErrNoStake
		}

		if err := e.release(ctx, id, caller, domain.ClaimKindRefund, amount); err != nil {
			return err
		}
		refunded = amount
		return nil
	})
	return refunded, err
}

// Claimed reports whether participant has been paid on a match.
func (e *Engine) Claimed(ctx context.Context, id uint64, participant common.Address) (bool, error) {
	_, err := e.claims.Get(ctx, id, participant)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (e *Engine) checkUnclaimed(ctx context.Context, id uint64, participant common.Address) error {
	claimed, err := e.Claimed(ctx, id, participant)
	if err != nil {
		return err
	}
	if claimed {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// release sets the claim flag, then transfers. The flag is cleared again
// only if the transfer fails.
func (e *Engine) release(ctx context.Context, id uint64, to common.Address, kind domain.ClaimKind, amount *uint256.Int) error {
	c := domain.Claim{
		MatchID:     id,
		Participant: to,
		Kind:        kind,
		Amount:      amountOf(amount),
		ClaimedAt:   e.now().UTC(),
	}
	if err := e.claims.MarkClaimed(ctx, c); err != nil {
		return err
	}

	if err := e.vault.TransferOut(ctx, to, amount); err != nil {
		if uerr := e.claims.Unmark(ctx, id, to); uerr != nil {
			e.logger.ErrorContext(ctx, "claim flag not cleared after failed transfer",
				slog.Uint64("match_id", id),
				slog.String("participant", to.Hex()),
				slog.String("error", uerr.Error()),
			)
			return errors.Join(err, uerr)
		}
		return err
	}

	flow := FlowPayout
	if kind == domain.ClaimKindRefund {
		flow = FlowRefund
	}
	e.observer.FundsMoved(flow, amount)
	e.logger.InfoContext(ctx, "funds released",
		slog.Uint64("match_id", id),
		slog.String("participant", to.Hex()),
		slog.String("kind", string(kind)),
		slog.String("amount", amount.Dec()),
	)
	e.emit(ctx, domain.Notification{
		Kind:    domain.NotifyClaimed,
		MatchID: id,
		Account: to,
		Amount:  amountOf(amount),
	})
	return nil
}
