package wager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/store/memory"
	"github.com/alanyoungcy/parimutuel/internal/vault"
)

var (
	adminAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	identityAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	treasuryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	escrowAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

type recordingSink struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (s *recordingSink) Emit(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *recordingSink) kinds() []domain.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.NotificationKind, len(s.got))
	for i, n := range s.got {
		out[i] = n.Kind
	}
	return out
}

func (s *recordingSink) last() domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

// hookVault wraps an escrow and lets a test intercept transfers.
type hookVault struct {
	*vault.Escrow
	onIn  func(ctx context.Context, from common.Address, amount *uint256.Int) error
	onOut func(ctx context.Context, to common.Address, amount *uint256.Int) error
}

func (v *hookVault) TransferIn(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if v.onIn != nil {
		if err := v.onIn(ctx, from, amount); err != nil {
			return err
		}
	}
	return v.Escrow.TransferIn(ctx, from, amount)
}

func (v *hookVault) TransferOut(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if v.onOut != nil {
		if err := v.onOut(ctx, to, amount); err != nil {
			return err
		}
	}
	return v.Escrow.TransferOut(ctx, to, amount)
}

var errTransferRejected = errors.New("transfer rejected")

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	ledger *vault.MemoryLedger
	vault  *hookVault
	db     *memory.DB
	stakes domain.StakeStore
	sink   *recordingSink
	signer *crypto.Signer
	now    time.Time
}

type harnessOption func(*Config, *Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		ledger: vault.NewMemoryLedger(),
		db:     memory.New(),
		sink:   &recordingSink{},
		signer: crypto.NewSignerFromKey(pk),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	escrow, err := vault.NewEscrow(h.ledger, escrowAddr)
	if err != nil {
		t.Fatalf("NewEscrow: %v", err)
	}
	h.vault = &hookVault{Escrow: escrow}
	h.stakes = memory.NewStakeStore(h.db)

	cfg := Config{
		Identity: identityAddr,
		Admin:    adminAddr,
		Signer:   h.signer.Address(),
		Treasury: treasuryAddr,
	}
	deps := Deps{
		Matches:  memory.NewMatchStore(h.db),
		Stakes:   h.stakes,
		Claims:   memory.NewClaimStore(h.db),
		Settings: memory.NewSettingsStore(h.db),
		Vault:    h.vault,
		Sink:     h.sink,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return h.now },
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	h.engine, err = New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) mint(to common.Address, amount uint64) {
	h.t.Helper()
	if err := h.ledger.Mint(to, uint256.NewInt(amount)); err != nil {
		h.t.Fatalf("Mint: %v", err)
	}
}

func (h *harness) balance(of common.Address) uint64 {
	h.t.Helper()
	b, err := h.ledger.BalanceOf(h.ctx, of)
	if err != nil {
		h.t.Fatalf("BalanceOf: %v", err)
	}
	return b.Uint64()
}

// openMatch creates and opens a match.
func (h *harness) openMatch(id uint64, feeBps uint16) {
	h.t.Helper()
	if _, err := h.engine.CreateMatch(h.ctx, adminAddr, id, h.now.Add(time.Hour), feeBps); err != nil {
		h.t.Fatalf("CreateMatch: %v", err)
	}
	if err := h.engine.OpenMatch(h.ctx, adminAddr, id); err != nil {
		h.t.Fatalf("OpenMatch: %v", err)
	}
}

func (h *harness) stake(who common.Address, id uint64, o domain.Outcome, amount uint64) {
	h.t.Helper()
	if _, err := h.engine.PlaceStake(h.ctx, who, id, o, uint256.NewInt(amount)); err != nil {
		h.t.Fatalf("PlaceStake(%s, %s, %d): %v", who.Hex(), o, amount, err)
	}
}

func (h *harness) close(id uint64) {
	h.t.Helper()
	if err := h.engine.CloseMatch(h.ctx, adminAddr, id); err != nil {
		h.t.Fatalf("CloseMatch: %v", err)
	}
}

func (h *harness) sign(s *crypto.Signer, id uint64, result domain.Outcome, ts uint64) []byte {
	h.t.Helper()
	sig, err := s.SignSettlement(identityAddr, id, uint8(result), ts)
	if err != nil {
		h.t.Fatalf("SignSettlement: %v", err)
	}
	return sig
}

func (h *harness) settle(id uint64, result domain.Outcome) (Settlement, error) {
	ts := uint64(h.now.Unix())
	return h.engine.SettleWithSignature(h.ctx, carol, id, result, ts, h.sign(h.signer, id, result, ts))
}

func (h *harness) mustSettle(id uint64, result domain.Outcome) Settlement {
	h.t.Helper()
	s, err := h.settle(id, result)
	if err != nil {
		h.t.Fatalf("SettleWithSignature: %v", err)
	}
	return s
}

func (h *harness) match(id uint64) domain.Match {
	h.t.Helper()
	m, err := h.engine.Match(h.ctx, id)
	if err != nil {
		h.t.Fatalf("Match: %v", err)
	}
	return m
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}
