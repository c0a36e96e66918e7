package wager

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func TestClaimScenarioSoleWinner(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)
	h.mustSettle(1, domain.OutcomeHome)

	aliceBefore := h.balance(alice)
	paid, err := h.engine.Claim(h.ctx, alice, 1)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if paid.Uint64() != 1455 {
		t.Fatalf("paid = %s, want 1455", paid.Dec())
	}
	if got := h.balance(alice) - aliceBefore; got != 1455 {
		t.Fatalf("alice balance grew by %d, want 1455", got)
	}

	n := h.sink.last()
	if n.Kind != domain.NotifyClaimed || n.Account != alice || n.Amount.Uint64() != 1455 {
		t.Fatalf("notification = %+v", n)
	}

	_, err = h.engine.Claim(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrAlreadyClaimed)
	if got := h.balance(alice) - aliceBefore; got != 1455 {
		t.Fatalf("alice paid twice: +%d", got)
	}

	_, err = h.engine.Claim(h.ctx, bob, 1)
	wantErr(t, err, domain.ErrNoWinningBet)

	if h.balance(escrowAddr) != 0 {
		t.Fatalf("escrow = %d after all claims, want 0", h.balance(escrowAddr))
	}
}

func TestClaimRequiresSettled(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)

	_, err := h.engine.Claim(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrNotSettled)

	h.engine.CancelMatch(h.ctx, adminAddr, 1)
	_, err = h.engine.Claim(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrNotSettled)
}

func TestClaimSplitsPoolProportionally(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 500)
	for _, p := range []common.Address{alice, bob, carol} {
		h.mint(p, 10_000)
	}
	h.stake(alice, 1, domain.OutcomeDraw, 300)
	h.stake(bob, 1, domain.OutcomeDraw, 700)
	h.stake(carol, 1, domain.OutcomeHome, 1001)
	h.close(1)
	h.mustSettle(1, domain.OutcomeDraw)

	// total 2001, fee floor(100.05)=100, pool floor(1900.95)=1900
	a, err := h.engine.Claim(h.ctx, alice, 1)
	if err != nil {
		t.Fatalf("Claim alice: %v", err)
	}
	b, err := h.engine.Claim(h.ctx, bob, 1)
	if err != nil {
		t.Fatalf("Claim bob: %v", err)
	}
	if a.Uint64() != 570 || b.Uint64() != 1330 {
		t.Fatalf("payouts alice=%s bob=%s, want 570/1330", a.Dec(), b.Dec())
	}
	// Rounding dust stays in escrow.
	if h.balance(escrowAddr) != 1 {
		t.Fatalf("escrow = %d, want 1 unit of dust", h.balance(escrowAddr))
	}
}

func TestRefundScenario(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 300)
	h.mint(alice, 10_000)
	h.stake(alice, 1, domain.OutcomeHome, 1000)
	h.stake(alice, 1, domain.OutcomeDraw, 500)
	if err := h.engine.CancelMatch(h.ctx, adminAddr, 1); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}

	refunded, err := h.engine.RefundOnCancelled(h.ctx, alice, 1)
	if err != nil {
		t.Fatalf("RefundOnCancelled: %v", err)
	}
	if refunded.Uint64() != 1500 {
		t.Fatalf("refund = %s, want 1500", refunded.Dec())
	}
	if h.balance(alice) != 10_000 {
		t.Fatalf("alice balance = %d, want 10000", h.balance(alice))
	}
	if h.balance(treasuryAddr) != 0 {
		t.Fatal("fee deducted from refund")
	}

	_, err = h.engine.RefundOnCancelled(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrAlreadyClaimed)

	_, err = h.engine.RefundOnCancelled(h.ctx, bob, 1)
	wantErr(t, err, domain.ErrNoStake)
}

func TestRefundRequiresCancelled(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)

	_, err := h.engine.RefundOnCancelled(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrNotCancelled)

	h.mustSettle(1, domain.OutcomeHome)
	_, err = h.engine.RefundOnCancelled(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrNotCancelled)
}

func TestClaimFlagSetBeforeTransfer(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)
	h.mustSettle(1, domain.OutcomeHome)

	var flagged bool
	h.vault.onOut = func(ctx context.Context, to common.Address, _ *uint256.Int) error {
		flagged, _ = h.engine.Claimed(ctx, 1, to)
		return nil
	}
	if _, err := h.engine.Claim(h.ctx, alice, 1); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !flagged {
		t.Fatal("claim flag not set when the transfer ran")
	}
}

func TestClaimReentryFromTransferFails(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)
	h.mustSettle(1, domain.OutcomeHome)

	var nestedErr error
	h.vault.onOut = func(ctx context.Context, to common.Address, _ *uint256.Int) error {
		_, nestedErr = h.engine.Claim(ctx, to, 1)
		return nil
	}
	if _, err := h.engine.Claim(h.ctx, alice, 1); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	wantErr(t, nestedErr, domain.ErrReentrantCall)
	if h.balance(escrowAddr) != 0 {
		t.Fatalf("escrow = %d, want 0", h.balance(escrowAddr))
	}
}

func TestRefundReentryFromTransferFails(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 300)
	h.mint(alice, 10_000)
	h.mint(bob, 10_000)
	h.stake(alice, 1, domain.OutcomeHome, 1000)
	h.stake(bob, 1, domain.OutcomeAway, 500)
	if err := h.engine.CancelMatch(h.ctx, adminAddr, 1); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}

	var nestedErr error
	h.vault.onOut = func(ctx context.Context, to common.Address, _ *uint256.Int) error {
		_, nestedErr = h.engine.RefundOnCancelled(ctx, to, 1)
		return nil
	}
	refunded, err := h.engine.RefundOnCancelled(h.ctx, alice, 1)
	if err != nil {
		t.Fatalf("RefundOnCancelled: %v", err)
	}
	wantErr(t, nestedErr, domain.ErrReentrantCall)
	if refunded.Uint64() != 1000 || h.balance(alice) != 10_000 {
		t.Fatalf("refund = %s, alice = %d", refunded.Dec(), h.balance(alice))
	}
	if h.balance(escrowAddr) != 500 {
		t.Fatalf("escrow = %d, want bob's 500", h.balance(escrowAddr))
	}

	h.vault.onOut = nil
	_, err = h.engine.RefundOnCancelled(h.ctx, alice, 1)
	wantErr(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimTransferFailureClearsFlag(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)
	h.mustSettle(1, domain.OutcomeHome)

	h.vault.onOut = func(context.Context, common.Address, *uint256.Int) error { return errTransferRejected }
	_, err := h.engine.Claim(h.ctx, alice, 1)
	wantErr(t, err, errTransferRejected)

	if claimed, _ := h.engine.Claimed(h.ctx, 1, alice); claimed {
		t.Fatal("claim flag left set after failed transfer")
	}

	h.vault.onOut = nil
	paid, err := h.engine.Claim(h.ctx, alice, 1)
	if err != nil {
		t.Fatalf("retry Claim: %v", err)
	}
	if paid.Uint64() != 1455 {
		t.Fatalf("paid = %s, want 1455", paid.Dec())
	}
}
