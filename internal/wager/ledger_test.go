package wager

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func TestPlaceStakeAccumulates(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 300)
	h.mint(alice, 10_000)

	h.stake(alice, 1, domain.OutcomeHome, 500)
	h.stake(alice, 1, domain.OutcomeHome, 300)
	h.stake(alice, 1, domain.OutcomeDraw, 200)

	st, err := h.engine.Stake(h.ctx, 1, alice)
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if got := st.On(domain.OutcomeHome).Uint64(); got != 800 {
		t.Fatalf("home stake = %d, want 800", got)
	}
	m := h.match(1)
	if m.TotalStaked.Uint64() != 1000 || m.TotalFor(domain.OutcomeDraw).Uint64() != 200 {
		t.Fatalf("totals = %s / draw %s", m.TotalStaked.Dec(), m.TotalFor(domain.OutcomeDraw).Dec())
	}
	if h.balance(escrowAddr) != 1000 || h.balance(alice) != 9000 {
		t.Fatalf("balances escrow=%d alice=%d", h.balance(escrowAddr), h.balance(alice))
	}

	n := h.sink.last()
	if n.Kind != domain.NotifyStakePlaced || n.Account != alice || n.Outcome != domain.OutcomeDraw || n.Amount.Uint64() != 200 {
		t.Fatalf("notification = %+v", n)
	}
}

func TestPlaceStakeRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		outcome domain.Outcome
		amount  uint64
		want    error
	}{
		{"created", func(h *harness) { h.engine.CreateMatch(h.ctx, adminAddr, 1, h.now, 0) }, domain.OutcomeHome, 1, domain.ErrNotOpen},
		{"closed", func(h *harness) { h.openMatch(1, 0); h.close(1) }, domain.OutcomeHome, 1, domain.ErrNotOpen},
		{"zero amount", func(h *harness) { h.openMatch(1, 0) }, domain.OutcomeHome, 0, domain.ErrZeroAmount},
		{"none outcome", func(h *harness) { h.openMatch(1, 0) }, domain.OutcomeNone, 1, domain.ErrInvalidOutcome},
		{"unknown outcome", func(h *harness) { h.openMatch(1, 0) }, domain.Outcome(9), 1, domain.ErrInvalidOutcome},
		{"insufficient balance", func(h *harness) { h.openMatch(1, 0) }, domain.OutcomeHome, 20_000, domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mint(alice, 10_000)
			tt.setup(h)
			before := len(h.sink.kinds())

			_, err := h.engine.PlaceStake(h.ctx, alice, 1, tt.outcome, uint256.NewInt(tt.amount))
			wantErr(t, err, tt.want)

			if h.balance(alice) != 10_000 {
				t.Fatalf("alice balance = %d, want untouched", h.balance(alice))
			}
			if m := h.match(1); !m.TotalStaked.IsZero() {
				t.Fatal("totals changed after rejected stake")
			}
			if len(h.sink.kinds()) != before {
				t.Fatal("notification emitted for rejected stake")
			}
		})
	}
}

func TestPlaceStakeAfterPriorStakesStillNotOpen(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 0)
	h.mint(alice, 100)
	h.stake(alice, 1, domain.OutcomeAway, 50)
	h.close(1)

	_, err := h.engine.PlaceStake(h.ctx, alice, 1, domain.OutcomeAway, uint256.NewInt(1))
	wantErr(t, err, domain.ErrNotOpen)
}

type failingStakeStore struct {
	domain.StakeStore
}

func (failingStakeStore) Apply(context.Context, domain.Match, domain.Stake) error {
	return errors.New("disk full")
}

func TestPlaceStakeReturnsFundsWhenWriteFails(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Stakes = failingStakeStore{StakeStore: d.Stakes}
	})
	h.openMatch(1, 0)
	h.mint(alice, 100)

	if _, err := h.engine.PlaceStake(h.ctx, alice, 1, domain.OutcomeHome, uint256.NewInt(40)); err == nil {
		t.Fatal("PlaceStake succeeded with failing store")
	}
	if h.balance(alice) != 100 || h.balance(escrowAddr) != 0 {
		t.Fatalf("balances alice=%d escrow=%d, want 100/0", h.balance(alice), h.balance(escrowAddr))
	}
}

func TestStakeConservation(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 250)

	participants := []common.Address{alice, bob, carol}
	for _, p := range participants {
		h.mint(p, 1_000_000)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		p := participants[rng.Intn(len(participants))]
		o := domain.Outcomes[rng.Intn(3)]
		h.stake(p, 1, o, uint64(rng.Intn(1000)+1))
	}

	m := h.match(1)
	sumTotals := new(uint256.Int)
	for _, o := range domain.Outcomes {
		sumTotals.Add(sumTotals, m.TotalFor(o))
	}
	if !sumTotals.Eq(&m.TotalStaked) {
		t.Fatalf("sum of totals %s != totalStaked %s", sumTotals.Dec(), m.TotalStaked.Dec())
	}

	stakes, err := h.engine.Stakes(h.ctx, 1)
	if err != nil {
		t.Fatalf("Stakes: %v", err)
	}
	sumStakes := new(uint256.Int)
	for _, st := range stakes {
		total, err := st.Total()
		if err != nil {
			t.Fatalf("Total: %v", err)
		}
		sumStakes.Add(sumStakes, total)
	}
	if !sumStakes.Eq(&m.TotalStaked) {
		t.Fatalf("sum of stakes %s != totalStaked %s", sumStakes.Dec(), m.TotalStaked.Dec())
	}
	if h.balance(escrowAddr) != m.TotalStaked.Uint64() {
		t.Fatalf("escrow %d != totalStaked %s", h.balance(escrowAddr), m.TotalStaked.Dec())
	}
}
