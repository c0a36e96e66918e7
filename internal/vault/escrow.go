package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Escrow implements domain.Vault as a fixed account on a token ledger.
type Escrow struct {
	ledger  domain.TokenLedger
	address common.Address
}

// NewEscrow returns a vault holding funds at address on ledger.
func NewEscrow(ledger domain.TokenLedger, address common.Address) (*Escrow, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("vault: escrow: %w", domain.ErrZeroAddress)
	}
	return &Escrow{ledger: ledger, address: address}, nil
}

// Address returns the escrow account.
func (e *Escrow) Address() common.Address { return e.address }

// TransferIn pulls amount from a participant into escrow.
func (e *Escrow) TransferIn(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if err := e.ledger.Transfer(ctx, from, e.address, amount); err != nil {
		return fmt.Errorf("vault: transfer in: %w", err)
	}
	return nil
}

// TransferOut releases amount from escrow.
func (e *Escrow) TransferOut(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if err := e.ledger.Transfer(ctx, e.address, to, amount); err != nil {
		return fmt.Errorf("vault: transfer out: %w", err)
	}
	return nil
}

// BalanceOf reads any account on the underlying ledger.
func (e *Escrow) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return e.ledger.BalanceOf(ctx, account)
}
