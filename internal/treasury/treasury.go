// Package treasury manages the account that collects settlement fees.
package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Treasury receives fees and lets its owner withdraw them.
type Treasury struct {
	address common.Address
	owner   common.Address
	ledger  domain.TokenLedger
	sink    domain.NotificationSink
	logger  *slog.Logger
}

// New creates a Treasury holding funds at address on ledger. sink may be nil.
func New(address, owner common.Address, ledger domain.TokenLedger, sink domain.NotificationSink, logger *slog.Logger) (*Treasury, error) {
	if address == (common.Address{}) || owner == (common.Address{}) {
		return nil, fmt.Errorf("treasury: %w", domain.ErrZeroAddress)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Treasury{
		address: address,
		owner:   owner,
		ledger:  ledger,
		sink:    sink,
		logger:  logger.With(slog.String("component", "treasury")),
	}, nil
}

// Address is the treasury account.
func (t *Treasury) Address() common.Address { return t.address }

// Owner is the account allowed to withdraw.
func (t *Treasury) Owner() common.Address { return t.owner }

// Balance returns the treasury's current holdings.
func (t *Treasury) Balance(ctx context.Context) (*uint256.Int, error) {
	return t.ledger.BalanceOf(ctx, t.address)
}

// ReceiveFees pulls amount from payer into the treasury.
func (t *Treasury) ReceiveFees(ctx context.Context, payer common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("treasury: receive fees: %w", domain.ErrZeroAmount)
	}
	if err := t.ledger.Transfer(ctx, payer, t.address, amount); err != nil {
		return fmt.Errorf("treasury: receive fees: %w", err)
	}

	t.logger.InfoContext(ctx, "fees received",
		slog.String("from", payer.Hex()),
		slog.String("amount", amount.Dec()),
	)
	t.emit(ctx, domain.NotifyFeesReceived, payer, amount)
	return nil
}

// Withdraw sends amount to a recipient. Only the owner may call it.
func (t *Treasury) Withdraw(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	if caller != t.owner {
		return fmt.Errorf("treasury: withdraw: %w", domain.ErrUnauthorized)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("treasury: withdraw: bad recipient: %w", domain.ErrZeroAddress)
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("treasury: withdraw: %w", domain.ErrZeroAmount)
	}
	if err := t.ledger.Transfer(ctx, t.address, to, amount); err != nil {
		return fmt.Errorf("treasury: withdraw: %w", err)
	}

	t.logger.InfoContext(ctx, "treasury withdrawal",
		slog.String("to", to.Hex()),
		slog.String("amount", amount.Dec()),
	)
	t.emit(ctx, domain.NotifyTreasuryWithdraw, to, amount)
	return nil
}

func (t *Treasury) emit(ctx context.Context, kind domain.NotificationKind, account common.Address, amount *uint256.Int) {
	if t.sink == nil {
		return
	}
	n := domain.Notification{
		ID:      uuid.New().String(),
		Kind:    kind,
		Account: account,
		Amount:  *amount,
		At:      time.Now().UTC(),
	}
	if err := t.sink.Emit(ctx, n); err != nil {
		t.logger.WarnContext(ctx, "notification not delivered",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}
