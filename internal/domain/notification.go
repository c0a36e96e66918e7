package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NotificationKind names an observable state change.
type NotificationKind string

const (
	NotifyMatchCreated     NotificationKind = "match_created"
	NotifyMatchOpened      NotificationKind = "match_opened"
	NotifyMatchClosed      NotificationKind = "match_closed"
	NotifyStakePlaced      NotificationKind = "stake_placed"
	NotifyMatchSettled     NotificationKind = "match_settled"
	NotifyFeeWithdrawn     NotificationKind = "fee_withdrawn"
	NotifyPoolRolledOver   NotificationKind = "pool_rolled_over"
	NotifyClaimed          NotificationKind = "claimed"
	NotifySignerUpdated    NotificationKind = "signer_updated"
	NotifyTreasuryUpdated  NotificationKind = "treasury_updated"
	NotifyFeesReceived     NotificationKind = "fees_received"
	NotifyTreasuryWithdraw NotificationKind = "treasury_withdraw"
)

// NotificationKinds lists every kind in emission order of a match's life.
var NotificationKinds = []NotificationKind{
	NotifyMatchCreated,
	NotifyMatchOpened,
	NotifyMatchClosed,
	NotifyStakePlaced,
	NotifyMatchSettled,
	NotifyFeeWithdrawn,
	NotifyPoolRolledOver,
	NotifyClaimed,
	NotifySignerUpdated,
	NotifyTreasuryUpdated,
	NotifyFeesReceived,
	NotifyTreasuryWithdraw,
}

// IsNotificationKind reports whether s names a known kind.
func IsNotificationKind(s string) bool {
	for _, k := range NotificationKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Notification is emitted after every successful state change. Which
// fields are set depends on Kind; a cancellation is a match_settled
// notification whose Outcome is None.
type Notification struct {
	ID        string
	Kind      NotificationKind
	MatchID   uint64
	Account   common.Address // participant, settler, signer or treasury
	Outcome   Outcome
	Amount    uint256.Int
	StartTime time.Time
	At        time.Time
}

// NotificationSink receives notifications. Delivery is best effort: a
// failing sink never rolls back the state change that produced it.
type NotificationSink interface {
	Emit(ctx context.Context, n Notification) error
}
