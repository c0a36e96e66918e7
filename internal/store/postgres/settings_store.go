package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// SettingsStore implements domain.SettingsStore on the engine_settings
// table.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a new SettingsStore backed by the given pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GetAddress returns the stored address or domain.ErrNotFound.
func (s *SettingsStore) GetAddress(ctx context.Context, engine common.Address, name string) (common.Address, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM engine_settings WHERE engine = $1 AND name = $2`,
		addrText(engine), name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, domain.ErrNotFound
		}
		return common.Address{}, fmt.Errorf("postgres: get setting %s: %w", name, err)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("postgres: setting %s holds %q, not an address", name, value)
	}
	return common.HexToAddress(value), nil
}

// PutAddress upserts the setting.
func (s *SettingsStore) PutAddress(ctx context.Context, engine common.Address, name string, addr common.Address) error {
	const upsert = `
		INSERT INTO engine_settings (engine, name, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (engine, name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, upsert, addrText(engine), name, addrText(addr)); err != nil {
		return fmt.Errorf("postgres: put setting %s: %w", name, err)
	}
	return nil
}
