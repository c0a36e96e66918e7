package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// describe renders n as an alert title and body. Amounts are shown in whole
// token units with the given decimals.
func describe(n domain.Notification, decimals int32) (title, message string) {
	amount := domain.FormatUnits(&n.Amount, decimals)

	switch n.Kind {
	case domain.NotifyMatchCreated:
		title = fmt.Sprintf("Match %d created", n.MatchID)
		if !n.StartTime.IsZero() {
			message = "Starts " + n.StartTime.UTC().Format("2006-01-02 15:04 MST")
		}
	case domain.NotifyMatchOpened:
		title = fmt.Sprintf("Match %d open for staking", n.MatchID)
	case domain.NotifyMatchClosed:
		title = fmt.Sprintf("Match %d closed", n.MatchID)
	case domain.NotifyStakePlaced:
		title = fmt.Sprintf("Stake on match %d", n.MatchID)
		message = fmt.Sprintf("%s staked %s on %s", n.Account.Hex(), amount, n.Outcome)
	case domain.NotifyMatchSettled:
		if n.Outcome == domain.OutcomeNone {
			title = fmt.Sprintf("Match %d cancelled", n.MatchID)
			message = "Stakes are refundable."
		} else {
			title = fmt.Sprintf("Match %d settled: %s", n.MatchID, n.Outcome)
			message = "Settled by " + n.Account.Hex()
		}
	case domain.NotifyFeeWithdrawn:
		title = fmt.Sprintf("Fee collected on match %d", n.MatchID)
		message = fmt.Sprintf("%s sent to treasury %s", amount, n.Account.Hex())
	case domain.NotifyPoolRolledOver:
		title = fmt.Sprintf("Match %d had no winners", n.MatchID)
		message = fmt.Sprintf("Prize pool of %s rolled over to treasury %s", amount, n.Account.Hex())
	case domain.NotifyClaimed:
		title = fmt.Sprintf("Claim on match %d", n.MatchID)
		message = fmt.Sprintf("%s received %s", n.Account.Hex(), amount)
	case domain.NotifySignerUpdated:
		title = "Settlement signer changed"
		message = "New signer " + n.Account.Hex()
	case domain.NotifyTreasuryUpdated:
		title = "Treasury changed"
		message = "New treasury " + n.Account.Hex()
	case domain.NotifyFeesReceived:
		title = "Treasury received fees"
		message = fmt.Sprintf("%s from %s", amount, n.Account.Hex())
	case domain.NotifyTreasuryWithdraw:
		title = "Treasury withdrawal"
		message = fmt.Sprintf("%s to %s", amount, n.Account.Hex())
	default:
		title = strings.ReplaceAll(string(n.Kind), "_", " ")
	}
	return title, message
}
