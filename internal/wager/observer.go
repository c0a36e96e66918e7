package wager

import (
	"time"

	"github.com/holiman/uint256"
)

// Fund flows reported to an Observer.
const (
	FlowStake    = "stake"
	FlowFee      = "fee"
	FlowRollover = "rollover"
	FlowPayout   = "payout"
	FlowRefund   = "refund"
)

// Observer receives operation outcomes and fund movements, typically for
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	OperationDone(op string, err error, elapsed time.Duration)
	FundsMoved(flow string, amount *uint256.Int)
}

type nopObserver struct{}

func (nopObserver) OperationDone(string, error, time.Duration) {}
func (nopObserver) FundsMoved(string, *uint256.Int)            {}
