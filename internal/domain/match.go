package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MaxFeeBps caps the fee a match may carry (10%).
	MaxFeeBps = 1000
	// BpsDenominator is the basis-point scale.
	BpsDenominator = 10000
)

// Outcome is one of the three results of a match. The numeric values are
// part of the signed settlement payload and must not change.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeHome
	OutcomeDraw
	OutcomeAway
)

// Outcomes lists the settleable outcomes in slot order.
var Outcomes = [3]Outcome{OutcomeHome, OutcomeDraw, OutcomeAway}

// Valid reports whether o is one of the three real outcomes.
func (o Outcome) Valid() bool {
	return o >= OutcomeHome && o <= OutcomeAway
}

// Slot returns the index of o in per-outcome arrays. It panics on None.
func (o Outcome) Slot() int {
	if !o.Valid() {
		panic(fmt.Sprintf("domain: outcome %d has no slot", o))
	}
	return int(o) - 1
}

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeHome:
		return "home"
	case OutcomeDraw:
		return "draw"
	case OutcomeAway:
		return "away"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// ParseOutcome accepts either the name ("home") or the wire value ("1").
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return OutcomeNone, nil
	case "home", "1":
		return OutcomeHome, nil
	case "draw", "2":
		return OutcomeDraw, nil
	case "away", "3":
		return OutcomeAway, nil
	}
	return OutcomeNone, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// MatchStatus is the lifecycle state of a match. Transitions only move forward.
type MatchStatus uint8

const (
	MatchStatusCreated MatchStatus = iota
	MatchStatusOpen
	MatchStatusClosed
	MatchStatusSettled
	MatchStatusCancelled
)

func (s MatchStatus) String() string {
	switch s {
	case MatchStatusCreated:
		return "created"
	case MatchStatusOpen:
		return "open"
	case MatchStatusClosed:
		return "closed"
	case MatchStatusSettled:
		return "settled"
	case MatchStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Finalized reports whether the match can no longer change.
func (s MatchStatus) Finalized() bool {
	return s == MatchStatusSettled || s == MatchStatusCancelled
}

// ParseMatchStatus parses a status name.
func ParseMatchStatus(s string) (MatchStatus, error) {
	for st := MatchStatusCreated; st <= MatchStatusCancelled; st++ {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("domain: unknown match status %q", s)
}

// Match is a single wagering market with three mutually exclusive outcomes.
type Match struct {
	ID          uint64
	StartTime   time.Time // advisory only
	Status      MatchStatus
	Result      Outcome
	Totals      [3]uint256.Int // indexed by Outcome.Slot
	TotalStaked uint256.Int
	FeeBps      uint16
	SettledBy   common.Address
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// TotalFor returns a copy of the pool backing outcome o.
func (m Match) TotalFor(o Outcome) *uint256.Int {
	if !o.Valid() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(&m.Totals[o.Slot()])
}
