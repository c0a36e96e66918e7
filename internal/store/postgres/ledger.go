package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Ledger implements domain.TokenLedger on the accounts table. Each
// transfer is one transaction with a conditional debit, so balances never
// go negative.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a new Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const creditSQL = `
	INSERT INTO accounts (address, balance, updated_at)
	VALUES ($1, $2::numeric, NOW())
	ON CONFLICT (address) DO UPDATE SET
		balance = accounts.balance + EXCLUDED.balance,
		updated_at = NOW()`

// Transfer moves amount between two accounts.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("postgres: transfer to zero address: %w", domain.ErrZeroAddress)
	}

	const debit = `
		UPDATE accounts SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE address = $1 AND balance >= $2::numeric`
	return inTx(ctx, l.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, debit, addrText(from), numText(amount))
		if err != nil {
			return fmt.Errorf("postgres: debit %s: %w", from.Hex(), err)
		}
		if tag.RowsAffected() == 0 && !amount.IsZero() {
			return fmt.Errorf("postgres: debit %s of %s: %w", from.Hex(), amount.Dec(), domain.ErrInsufficientBalance)
		}
		if _, err := tx.Exec(ctx, creditSQL, addrText(to), numText(amount)); err != nil {
			return fmt.Errorf("postgres: credit %s: %w", to.Hex(), err)
		}
		return nil
	})
}

// Deposit credits an account from outside the ledger.
func (l *Ledger) Deposit(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if _, err := l.pool.Exec(ctx, creditSQL, addrText(to), numText(amount)); err != nil {
		return fmt.Errorf("postgres: deposit %s: %w", to.Hex(), err)
	}
	return nil
}

// BalanceOf returns the account balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	var s string
	err := l.pool.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE address = $1`, addrText(account)).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("postgres: balance %s: %w", account.Hex(), err)
	}
	out := new(uint256.Int)
	if err := scanNum(s, out); err != nil {
		return nil, err
	}
	return out, nil
}
