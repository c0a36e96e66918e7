package wager

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/store/memory"
)

func TestNewRejectsZeroAddresses(t *testing.T) {
	deps := Deps{}
	if _, err := New(Config{}, deps); err == nil {
		t.Fatal("New with empty config succeeded")
	}
}

func TestSetSigner(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)

	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	next := crypto.NewSignerFromKey(pk)

	wantErr(t, h.engine.SetSigner(h.ctx, alice, next.Address()), domain.ErrUnauthorized)
	wantErr(t, h.engine.SetSigner(h.ctx, adminAddr, common.Address{}), domain.ErrZeroAddress)

	if err := h.engine.SetSigner(h.ctx, adminAddr, next.Address()); err != nil {
		t.Fatalf("SetSigner: %v", err)
	}
	if got, err := h.engine.Signer(h.ctx); err != nil || got != next.Address() {
		t.Fatalf("Signer = %s, %v", got.Hex(), err)
	}
	if n := h.sink.last(); n.Kind != domain.NotifySignerUpdated || n.Account != next.Address() {
		t.Fatalf("notification = %+v", n)
	}

	// The previous authority no longer settles.
	_, err = h.settle(1, domain.OutcomeHome)
	wantErr(t, err, domain.ErrBadSignature)

	ts := uint64(h.now.Unix())
	if _, err := h.engine.SettleWithSignature(h.ctx, carol, 1, domain.OutcomeHome, ts, h.sign(next, 1, domain.OutcomeHome, ts)); err != nil {
		t.Fatalf("settle with new signer: %v", err)
	}
}

func TestSetTreasury(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)
	newTreasury := common.HexToAddress("0x00000000000000000000000000000000000000f1")

	wantErr(t, h.engine.SetTreasury(h.ctx, bob, newTreasury), domain.ErrUnauthorized)
	wantErr(t, h.engine.SetTreasury(h.ctx, adminAddr, common.Address{}), domain.ErrZeroAddress)

	if err := h.engine.SetTreasury(h.ctx, adminAddr, newTreasury); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}
	h.mustSettle(1, domain.OutcomeHome)

	if h.balance(newTreasury) != 45 || h.balance(treasuryAddr) != 0 {
		t.Fatalf("fee went to wrong treasury: new=%d old=%d", h.balance(newTreasury), h.balance(treasuryAddr))
	}
}

// A second engine over the same store sees settings changed through the
// first, as a restarted instance would.
func TestSettingsSharedAcrossEngines(t *testing.T) {
	h := newHarness(t)
	scenario(t, h)

	var settings domain.SettingsStore
	other := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.Signer = h.signer.Address()
		deps.Matches = memory.NewMatchStore(h.db)
		deps.Stakes = h.stakes
		deps.Claims = memory.NewClaimStore(h.db)
		deps.Vault = h.vault
		settings = memory.NewSettingsStore(h.db)
		deps.Settings = settings
	})

	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	next := crypto.NewSignerFromKey(pk)
	newTreasury := common.HexToAddress("0x00000000000000000000000000000000000000f2")

	if err := h.engine.SetSigner(h.ctx, adminAddr, next.Address()); err != nil {
		t.Fatalf("SetSigner: %v", err)
	}
	if err := h.engine.SetTreasury(h.ctx, adminAddr, newTreasury); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}

	if got, _ := settings.GetAddress(h.ctx, identityAddr, domain.SettingSigner); got != next.Address() {
		t.Fatalf("stored signer = %s", got.Hex())
	}
	if got, err := other.engine.Signer(h.ctx); err != nil || got != next.Address() {
		t.Fatalf("other Signer = %s, %v", got.Hex(), err)
	}
	if got, err := other.engine.Treasury(h.ctx); err != nil || got != newTreasury {
		t.Fatalf("other Treasury = %s, %v", got.Hex(), err)
	}

	ts := uint64(h.now.Unix())
	_, err = other.engine.SettleWithSignature(h.ctx, carol, 1, domain.OutcomeHome, ts, h.sign(h.signer, 1, domain.OutcomeHome, ts))
	wantErr(t, err, domain.ErrBadSignature)
	if _, err := other.engine.SettleWithSignature(h.ctx, carol, 1, domain.OutcomeHome, ts, h.sign(next, 1, domain.OutcomeHome, ts)); err != nil {
		t.Fatalf("settle with stored signer: %v", err)
	}
	if h.balance(newTreasury) != 45 {
		t.Fatalf("treasury balance = %d, want 45", h.balance(newTreasury))
	}
}

type failingSettings struct{}

func (failingSettings) GetAddress(context.Context, common.Address, string) (common.Address, error) {
	return common.Address{}, errSettingsDown
}

func (failingSettings) PutAddress(context.Context, common.Address, string, common.Address) error {
	return errSettingsDown
}

var errSettingsDown = errors.New("settings down")

func TestSettingsStoreFailure(t *testing.T) {
	h := newHarness(t, func(_ *Config, deps *Deps) { deps.Settings = failingSettings{} })

	wantErr(t, h.engine.SetSigner(h.ctx, adminAddr, carol), errSettingsDown)
	if _, err := h.engine.Signer(h.ctx); !errors.Is(err, errSettingsDown) {
		t.Fatalf("Signer err = %v", err)
	}
	if len(h.sink.kinds()) != 0 {
		t.Fatalf("notifications emitted after failed update: %v", h.sink.kinds())
	}
}
