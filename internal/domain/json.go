package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Amounts are encoded as base-unit decimal strings so JSON consumers never
// lose precision.

type outcomeAmounts struct {
	Home string `json:"home"`
	Draw string `json:"draw"`
	Away string `json:"away"`
}

func encodeAmounts(a *[3]uint256.Int) outcomeAmounts {
	return outcomeAmounts{Home: a[0].Dec(), Draw: a[1].Dec(), Away: a[2].Dec()}
}

func (o outcomeAmounts) decode(dst *[3]uint256.Int) error {
	for i, s := range []string{o.Home, o.Draw, o.Away} {
		if err := decodeAmount(s, &dst[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeAmount(s string, dst *uint256.Int) error {
	if s == "" {
		dst.Clear()
		return nil
	}
	if err := dst.SetFromDecimal(s); err != nil {
		return fmt.Errorf("domain: amount %q: %w", s, err)
	}
	return nil
}

type matchJSON struct {
	ID          uint64         `json:"id"`
	StartTime   time.Time      `json:"start_time"`
	Status      string         `json:"status"`
	Result      string         `json:"result"`
	Totals      outcomeAmounts `json:"totals"`
	TotalStaked string         `json:"total_staked"`
	FeeBps      uint16         `json:"fee_bps"`
	SettledBy   *string        `json:"settled_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	FinalizedAt *time.Time     `json:"finalized_at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Match) MarshalJSON() ([]byte, error) {
	out := matchJSON{
		ID:          m.ID,
		StartTime:   m.StartTime,
		Status:      m.Status.String(),
		Result:      m.Result.String(),
		Totals:      encodeAmounts(&m.Totals),
		TotalStaked: m.TotalStaked.Dec(),
		FeeBps:      m.FeeBps,
		CreatedAt:   m.CreatedAt,
		FinalizedAt: m.FinalizedAt,
	}
	if m.SettledBy != (common.Address{}) {
		s := m.SettledBy.Hex()
		out.SettledBy = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Match) UnmarshalJSON(data []byte) error {
	var in matchJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	status, err := ParseMatchStatus(in.Status)
	if err != nil {
		return err
	}
	result, err := ParseOutcome(in.Result)
	if err != nil {
		return err
	}

	*m = Match{
		ID:          in.ID,
		StartTime:   in.StartTime,
		Status:      status,
		Result:      result,
		FeeBps:      in.FeeBps,
		CreatedAt:   in.CreatedAt,
		FinalizedAt: in.FinalizedAt,
	}
	if in.SettledBy != nil {
		m.SettledBy = common.HexToAddress(*in.SettledBy)
	}
	if err := in.Totals.decode(&m.Totals); err != nil {
		return err
	}
	return decodeAmount(in.TotalStaked, &m.TotalStaked)
}

type stakeJSON struct {
	MatchID     uint64         `json:"match_id"`
	Participant common.Address `json:"participant"`
	Amounts     outcomeAmounts `json:"amounts"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (s Stake) MarshalJSON() ([]byte, error) {
	return json.Marshal(stakeJSON{
		MatchID:     s.MatchID,
		Participant: s.Participant,
		Amounts:     encodeAmounts(&s.Amounts),
		UpdatedAt:   s.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stake) UnmarshalJSON(data []byte) error {
	var in stakeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Stake{MatchID: in.MatchID, Participant: in.Participant, UpdatedAt: in.UpdatedAt}
	return in.Amounts.decode(&s.Amounts)
}

type claimJSON struct {
	MatchID     uint64         `json:"match_id"`
	Participant common.Address `json:"participant"`
	Kind        ClaimKind      `json:"kind"`
	Amount      string         `json:"amount"`
	ClaimedAt   time.Time      `json:"claimed_at"`
}

// MarshalJSON implements json.Marshaler.
func (c Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(claimJSON{
		MatchID:     c.MatchID,
		Participant: c.Participant,
		Kind:        c.Kind,
		Amount:      c.Amount.Dec(),
		ClaimedAt:   c.ClaimedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Claim) UnmarshalJSON(data []byte) error {
	var in claimJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Claim{MatchID: in.MatchID, Participant: in.Participant, Kind: in.Kind, ClaimedAt: in.ClaimedAt}
	return decodeAmount(in.Amount, &c.Amount)
}

type notificationJSON struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	MatchID   uint64           `json:"match_id,omitempty"`
	Account   *common.Address  `json:"account,omitempty"`
	Outcome   string           `json:"outcome,omitempty"`
	Amount    string           `json:"amount,omitempty"`
	StartTime *time.Time       `json:"start_time,omitempty"`
	At        time.Time        `json:"at"`
}

// MarshalJSON implements json.Marshaler.
func (n Notification) MarshalJSON() ([]byte, error) {
	out := notificationJSON{ID: n.ID, Kind: n.Kind, MatchID: n.MatchID, At: n.At}
	if n.Account != (common.Address{}) {
		a := n.Account
		out.Account = &a
	}
	switch n.Kind {
	case NotifyStakePlaced, NotifyMatchSettled, NotifyPoolRolledOver:
		out.Outcome = n.Outcome.String()
	}
	if !n.Amount.IsZero() {
		out.Amount = n.Amount.Dec()
	}
	if !n.StartTime.IsZero() {
		st := n.StartTime
		out.StartTime = &st
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var in notificationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = Notification{ID: in.ID, Kind: in.Kind, MatchID: in.MatchID, At: in.At}
	if in.Account != nil {
		n.Account = *in.Account
	}
	if in.Outcome != "" {
		o, err := ParseOutcome(in.Outcome)
		if err != nil {
			return err
		}
		n.Outcome = o
	}
	if in.StartTime != nil {
		n.StartTime = *in.StartTime
	}
	return decodeAmount(in.Amount, &n.Amount)
}
