package wager

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

var bpsDenominator = uint256.NewInt(domain.BpsDenominator)

// Fee is floor(totalStaked * feeBps / 10000).
func Fee(m domain.Match) *uint256.Int {
	return mulDivBps(&m.TotalStaked, uint64(m.FeeBps))
}

// PrizePool is floor(totalStaked * (10000 - feeBps) / 10000). Because both
// Fee and PrizePool round down, up to one base unit of dust can remain in
// escrow per match.
func PrizePool(m domain.Match) *uint256.Int {
	return mulDivBps(&m.TotalStaked, domain.BpsDenominator-uint64(m.FeeBps))
}

// Payout is a participant's entitlement on a settled match:
//
//	floor(stake[result] * PrizePool / totals[result])
//
// It is zero before settlement, for participants who did not back the
// result, and when nobody backed the result (the pool is swept to the
// treasury at settlement instead).
func Payout(m domain.Match, s domain.Stake) (*uint256.Int, error) {
	if m.Status != domain.MatchStatusSettled || !m.Result.Valid() {
		return new(uint256.Int), nil
	}
	userStake := s.On(m.Result)
	if userStake.IsZero() {
		return new(uint256.Int), nil
	}
	winnerTotal := m.TotalFor(m.Result)
	if winnerTotal.IsZero() {
		return new(uint256.Int), nil
	}

	out, overflow := new(uint256.Int).MulDivOverflow(userStake, PrizePool(m), winnerTotal)
	if overflow {
		return nil, domain.ErrArithmeticOverflow
	}
	return out, nil
}

// Refund is the gross amount returned on a cancelled match.
func Refund(s domain.Stake) (*uint256.Int, error) {
	return s.Total()
}

// ComputePayout loads the match and stake and applies Payout. It never
// mutates state and returns zero for unsettled matches.
func (e *Engine) ComputePayout(ctx context.Context, id uint64, participant common.Address) (*uint256.Int, error) {
	m, err := e.Match(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := e.stakes.Get(ctx, id, participant)
	if err != nil {
		return nil, err
	}
	return Payout(m, s)
}

// mulDivBps computes floor(x * bps / 10000) with a 512-bit intermediate.
func mulDivBps(x *uint256.Int, bps uint64) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(x, uint256.NewInt(bps), bpsDenominator)
	return out
}
