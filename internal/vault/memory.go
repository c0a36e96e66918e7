// Package vault provides the value-transfer side of the engine: a token
// ledger held in memory and the escrow account layered on any ledger.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// MemoryLedger is an in-process fungible token ledger.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	supply   uint256.Int
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]*uint256.Int)}
}

// Mint credits amount to account.
func (l *MemoryLedger) Mint(account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, overflow := new(uint256.Int).AddOverflow(&l.supply, amount); overflow {
		return fmt.Errorf("vault: mint: %w", domain.ErrArithmeticOverflow)
	}
	l.supply.Add(&l.supply, amount)
	l.balance(account).Add(l.balance(account), amount)
	return nil
}

// Deposit credits amount to account from outside the ledger.
func (l *MemoryLedger) Deposit(_ context.Context, to common.Address, amount *uint256.Int) error {
	return l.Mint(to, amount)
}

// Transfer moves amount from one account to another.
func (l *MemoryLedger) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("vault: transfer to zero address: %w", domain.ErrZeroAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(from)
	if src.Lt(amount) {
		return fmt.Errorf("vault: transfer %s from %s: %w", amount.Dec(), from.Hex(), domain.ErrInsufficientBalance)
	}
	src.Sub(src, amount)
	l.balance(to).Add(l.balance(to), amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (l *MemoryLedger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(account)), nil
}

// TotalSupply returns the sum of everything minted.
func (l *MemoryLedger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(&l.supply)
}

// balance must be called with mu held.
func (l *MemoryLedger) balance(account common.Address) *uint256.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(uint256.Int)
		l.balances[account] = b
	}
	return b
}
