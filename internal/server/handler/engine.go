package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/wager"
)

// Engine is the mutating surface of wager.Engine used by the handlers.
type Engine interface {
	CreateMatch(ctx context.Context, caller common.Address, id uint64, startTime time.Time, feeBps uint16) (domain.Match, error)
	OpenMatch(ctx context.Context, caller common.Address, id uint64) error
	CloseMatch(ctx context.Context, caller common.Address, id uint64) error
	CancelMatch(ctx context.Context, caller common.Address, id uint64) error
	PlaceStake(ctx context.Context, caller common.Address, id uint64, outcome domain.Outcome, amount *uint256.Int) (domain.Stake, error)
	SettleWithSignature(ctx context.Context, caller common.Address, id uint64, result domain.Outcome, timestamp uint64, signature []byte) (wager.Settlement, error)
	Claim(ctx context.Context, caller common.Address, id uint64) (*uint256.Int, error)
	RefundOnCancelled(ctx context.Context, caller common.Address, id uint64) (*uint256.Int, error)
	SetSigner(ctx context.Context, caller, signer common.Address) error
	SetTreasury(ctx context.Context, caller, treasury common.Address) error
	Identity() common.Address
	Admin() common.Address
	Signer(ctx context.Context) (common.Address, error)
	Treasury(ctx context.Context) (common.Address, error)
}

var _ Engine = (*wager.Engine)(nil)

// outcomeValue decodes an outcome given either by name ("draw") or by its
// wire value (2).
type outcomeValue domain.Outcome

func (o *outcomeValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	out, err := domain.ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = outcomeValue(out)
	return nil
}
