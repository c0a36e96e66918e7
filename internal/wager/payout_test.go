package wager

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func settledMatch(fee uint16, result domain.Outcome, home, draw, away uint64) domain.Match {
	m := domain.Match{ID: 1, Status: domain.MatchStatusSettled, Result: result, FeeBps: fee}
	m.Totals[0].SetUint64(home)
	m.Totals[1].SetUint64(draw)
	m.Totals[2].SetUint64(away)
	m.TotalStaked.SetUint64(home + draw + away)
	return m
}

func stakeOn(o domain.Outcome, amount uint64) domain.Stake {
	var s domain.Stake
	s.Amounts[o.Slot()].SetUint64(amount)
	return s
}

func TestFeeAndPrizePool(t *testing.T) {
	tests := []struct {
		total    uint64
		fee      uint16
		wantFee  uint64
		wantPool uint64
	}{
		{1500, 300, 45, 1455},
		{1501, 300, 45, 1455}, // one unit of dust
		{999, 1000, 99, 899},
		{1000, 0, 0, 1000},
		{0, 500, 0, 0},
	}
	for _, tt := range tests {
		m := settledMatch(tt.fee, domain.OutcomeHome, tt.total, 0, 0)
		if got := Fee(m).Uint64(); got != tt.wantFee {
			t.Errorf("Fee(%d @ %d) = %d, want %d", tt.total, tt.fee, got, tt.wantFee)
		}
		if got := PrizePool(m).Uint64(); got != tt.wantPool {
			t.Errorf("PrizePool(%d @ %d) = %d, want %d", tt.total, tt.fee, got, tt.wantPool)
		}
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		name  string
		match domain.Match
		stake domain.Stake
		want  uint64
	}{
		{"sole winner takes pool", settledMatch(300, domain.OutcomeHome, 1000, 0, 500), stakeOn(domain.OutcomeHome, 1000), 1455},
		{"loser", settledMatch(300, domain.OutcomeHome, 1000, 0, 500), stakeOn(domain.OutcomeAway, 500), 0},
		{"proportional floor", settledMatch(300, domain.OutcomeDraw, 100, 300, 200), stakeOn(domain.OutcomeDraw, 100), 194},
		{"zero backers", settledMatch(300, domain.OutcomeDraw, 100, 0, 200), stakeOn(domain.OutcomeHome, 100), 0},
		{"not settled", func() domain.Match {
			m := settledMatch(300, domain.OutcomeHome, 1000, 0, 0)
			m.Status = domain.MatchStatusClosed
			return m
		}(), stakeOn(domain.OutcomeHome, 1000), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Payout(tt.match, tt.stake)
			if err != nil {
				t.Fatalf("Payout: %v", err)
			}
			if got.Uint64() != tt.want {
				t.Fatalf("Payout = %s, want %d", got.Dec(), tt.want)
			}
		})
	}
}

func TestPayoutNeverExceedsPool(t *testing.T) {
	// Three winners splitting a pool that does not divide evenly.
	m := settledMatch(250, domain.OutcomeAway, 7, 11, 3+5+9)
	pool := PrizePool(m)

	paid := new(uint256.Int)
	for _, amt := range []uint64{3, 5, 9} {
		p, err := Payout(m, stakeOn(domain.OutcomeAway, amt))
		if err != nil {
			t.Fatalf("Payout: %v", err)
		}
		paid.Add(paid, p)
	}
	if paid.Gt(pool) {
		t.Fatalf("paid %s exceeds pool %s", paid.Dec(), pool.Dec())
	}
}

func TestPayoutLargeAmounts(t *testing.T) {
	// userStake * prizePool exceeds 256 bits; the 512-bit intermediate keeps
	// the result exact.
	big := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	m := domain.Match{Status: domain.MatchStatusSettled, Result: domain.OutcomeHome, FeeBps: 0}
	m.Totals[0].Set(big)
	m.TotalStaked.Set(big)
	var s domain.Stake
	s.Amounts[0].Set(big)

	got, err := Payout(m, s)
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if !got.Eq(big) {
		t.Fatalf("Payout = %s, want %s", got.Dec(), big.Dec())
	}
}

func TestComputePayoutIsReadOnly(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)

	before, err := h.engine.ComputePayout(h.ctx, 1, alice)
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if !before.IsZero() {
		t.Fatalf("payout before settlement = %s, want 0", before.Dec())
	}

	h.mustSettle(1, domain.OutcomeHome)
	for i := 0; i < 2; i++ {
		got, err := h.engine.ComputePayout(h.ctx, 1, alice)
		if err != nil {
			t.Fatalf("ComputePayout: %v", err)
		}
		if got.Uint64() != 1455 {
			t.Fatalf("ComputePayout = %s, want 1455", got.Dec())
		}
	}
	if claimed, _ := h.engine.Claimed(h.ctx, 1, alice); claimed {
		t.Fatal("ComputePayout set the claim flag")
	}

	if _, err := h.engine.ComputePayout(h.ctx, 99, alice); err == nil {
		t.Fatal("ComputePayout on unknown match succeeded")
	}
}
