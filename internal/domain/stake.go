package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Stake is one participant's accumulated position on a match.
type Stake struct {
	MatchID     uint64
	Participant common.Address
	Amounts     [3]uint256.Int // indexed by Outcome.Slot
	UpdatedAt   time.Time
}

// On returns a copy of the amount staked on outcome o.
func (s Stake) On(o Outcome) *uint256.Int {
	if !o.Valid() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(&s.Amounts[o.Slot()])
}

// Total returns the sum across all three outcomes.
func (s Stake) Total() (*uint256.Int, error) {
	sum := new(uint256.Int)
	for i := range s.Amounts {
		if _, overflow := sum.AddOverflow(sum, &s.Amounts[i]); overflow {
			return nil, ErrArithmeticOverflow
		}
	}
	return sum, nil
}

// IsZero reports whether the participant has nothing staked.
func (s Stake) IsZero() bool {
	for i := range s.Amounts {
		if !s.Amounts[i].IsZero() {
			return false
		}
	}
	return true
}

// ClaimKind distinguishes winner payouts from cancellation refunds.
type ClaimKind string

const (
	ClaimKindPayout ClaimKind = "payout"
	ClaimKindRefund ClaimKind = "refund"
)

// Claim records that a participant has been paid for a match. Its
// existence is the claim flag; it is never removed once a transfer succeeds.
type Claim struct {
	MatchID     uint64
	Participant common.Address
	Kind        ClaimKind
	Amount      uint256.Int
	ClaimedAt   time.Time
}
