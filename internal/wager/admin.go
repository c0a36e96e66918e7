package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// SetSigner replaces the settlement authority.
func (e *Engine) SetSigner(ctx context.Context, caller, signer common.Address) error {
	return e.setAddress(ctx, caller, "set_signer", domain.SettingSigner, signer, &e.signer, domain.NotifySignerUpdated)
}

// SetTreasury replaces the fee recipient. Settlements already completed
// are unaffected.
func (e *Engine) SetTreasury(ctx context.Context, caller, treasury common.Address) error {
	return e.setAddress(ctx, caller, "set_treasury", domain.SettingTreasury, treasury, &e.treasury, domain.NotifyTreasuryUpdated)
}

func (e *Engine) setAddress(ctx context.Context, caller common.Address, op, name string, addr common.Address, field *common.Address, kind domain.NotificationKind) error {
	start := e.now()
	err := func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if addr == (common.Address{}) {
			return domain.ErrZeroAddress
		}
		if e.settings != nil {
			if err := e.settings.PutAddress(ctx, e.identity, name, addr); err != nil {
				return err
			}
		}
		e.mu.Lock()
		*field = addr
		e.mu.Unlock()
		return nil
	}()
	e.observer.OperationDone(op, err, e.now().Sub(start))
	if err != nil {
		return fmt.Errorf("wager: %s: %w", op, err)
	}

	e.logger.InfoContext(ctx, "admin setting changed",
		slog.String("op", op),
		slog.String("address", addr.Hex()),
	)
	e.emit(ctx, domain.Notification{Kind: kind, Account: addr})
	return nil
}

// setting reads name from the settings store. Without a store, or before
// the administrator has changed it, the configured value in field applies.
func (e *Engine) setting(ctx context.Context, name string, field *common.Address) (common.Address, error) {
	if e.settings != nil {
		addr, err := e.settings.GetAddress(ctx, e.identity, name)
		switch {
		case err == nil:
			e.mu.Lock()
			*field = addr
			e.mu.Unlock()
			return addr, nil
		case !errors.Is(err, domain.ErrNotFound):
			return common.Address{}, fmt.Errorf("wager: read %s: %w", name, err)
		}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *field, nil
}

// Identity is the address bound into signed settlements.
func (e *Engine) Identity() common.Address { return e.identity }

// Admin is the address allowed to manage matches and settings.
func (e *Engine) Admin() common.Address { return e.admin }

// Signer is the current settlement authority.
func (e *Engine) Signer(ctx context.Context) (common.Address, error) {
	return e.setting(ctx, domain.SettingSigner, &e.signer)
}

// Treasury is the current fee recipient.
func (e *Engine) Treasury(ctx context.Context) (common.Address, error) {
	return e.setting(ctx, domain.SettingTreasury, &e.treasury)
}
