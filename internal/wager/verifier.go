package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Settlement is the outcome of a successful SettleWithSignature.
type Settlement struct {
	Match    domain.Match
	Fee      *uint256.Int
	Rollover *uint256.Int // prize pool swept to the treasury when nobody backed the result
}

// SettleWithSignature records result for a Closed match once the authority's
// signature over (identity, id, result, timestamp) has been verified, and
// moves the fee to the treasury.
//
// If the winning outcome has no backers the prize pool is swept to the
// treasury together with the fee, so no funds are stranded in escrow.
func (e *Engine) SettleWithSignature(ctx context.Context, caller common.Address, id uint64, result domain.Outcome, timestamp uint64, signature []byte) (Settlement, error) {
	var out Settlement
	err := e.locked(ctx, "settle", id, func(ctx context.Context) error {
		m, err := e.matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case m.Status.Finalized():
			return fmt.Errorf("%w: %w", domain.ErrBadStatus, domain.ErrAlreadyFinalized)
		case m.Status != domain.MatchStatusClosed:
			return fmt.Errorf("%w: %s", domain.ErrBadStatus, m.Status)
		}
		if !result.Valid() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidResult, result)
		}
		if err := e.verifySettlement(ctx, id, result, timestamp, signature); err != nil {
			return err
		}

		treasury, err := e.Treasury(ctx)
		if err != nil {
			return err
		}

		prev := m
		now := e.now().UTC()
		m.Status = domain.MatchStatusSettled
		m.Result = result
		m.SettledBy = caller
		m.FinalizedAt = &now
		if err := e.matches.Update(ctx, m); err != nil {
			return err
		}

		fee := Fee(m)
		rollover := new(uint256.Int)
		if m.TotalFor(result).IsZero() {
			rollover = PrizePool(m)
		}
		sweep := new(uint256.Int).Add(fee, rollover)

		if !sweep.IsZero() {
			if err := e.vault.TransferOut(ctx, treasury, sweep); err != nil {
				if rerr := e.matches.Update(ctx, prev); rerr != nil {
					e.logger.ErrorContext(ctx, "settlement rollback failed",
						slog.Uint64("match_id", id),
						slog.String("error", rerr.Error()),
					)
					return errors.Join(err, rerr)
				}
				return err
			}
		}

		out = Settlement{Match: m, Fee: fee, Rollover: rollover}

		e.logger.InfoContext(ctx, "match settled",
			slog.Uint64("match_id", id),
			slog.String("result", result.String()),
			slog.String("by", caller.Hex()),
			slog.String("fee", fee.Dec()),
			slog.String("rollover", rollover.Dec()),
		)
		if !fee.IsZero() {
			e.observer.FundsMoved(FlowFee, fee)
			e.emit(ctx, domain.Notification{
				Kind:    domain.NotifyFeeWithdrawn,
				MatchID: id,
				Account: treasury,
				Amount:  amountOf(fee),
			})
		}
		if !rollover.IsZero() {
			e.observer.FundsMoved(FlowRollover, rollover)
			e.emit(ctx, domain.Notification{
				Kind:    domain.NotifyPoolRolledOver,
				MatchID: id,
				Account: treasury,
				Outcome: result,
				Amount:  amountOf(rollover),
			})
		}
		e.emit(ctx, domain.Notification{
			Kind:    domain.NotifyMatchSettled,
			MatchID: id,
			Account: caller,
			Outcome: result,
		})
		return nil
	})
	return out, err
}

func (e *Engine) verifySettlement(ctx context.Context, id uint64, result domain.Outcome, timestamp uint64, signature []byte) error {
	recovered, err := crypto.RecoverSettlementSigner(e.identity, id, uint8(result), timestamp, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}
	want, err := e.Signer(ctx)
	if err != nil {
		return err
	}
	if recovered != want {
		return fmt.Errorf("%w: signed by %s", domain.ErrBadSignature, recovered.Hex())
	}

	if e.maxAge > 0 {
		signedAt := time.Unix(int64(timestamp), 0)
		skew := e.now().Sub(signedAt)
		if skew > e.maxAge || -skew > e.maxAge {
			return fmt.Errorf("%w: signed at %s", domain.ErrStaleSignature, signedAt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}
