package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenLedger is the fungible-asset ledger that holds balances by account.
// Transfer must be all-or-nothing.
type TokenLedger interface {
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

// Depositor credits accounts from outside the ledger (token issuance).
type Depositor interface {
	Deposit(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Vault is the engine's escrow account on a TokenLedger.
type Vault interface {
	// Address is the escrow account.
	Address() common.Address
	// TransferIn pulls amount from a participant into escrow.
	TransferIn(ctx context.Context, from common.Address, amount *uint256.Int) error
	// TransferOut releases amount from escrow to an account.
	TransferOut(ctx context.Context, to common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}
