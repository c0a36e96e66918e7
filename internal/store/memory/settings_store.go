package memory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// SettingsStore implements domain.SettingsStore.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a SettingsStore over db.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetAddress returns the stored address or domain.ErrNotFound.
func (s *SettingsStore) GetAddress(_ context.Context, engine common.Address, name string) (common.Address, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	addr, ok := s.db.settings[settingKey{engine, name}]
	if !ok {
		return common.Address{}, domain.ErrNotFound
	}
	return addr, nil
}

// PutAddress stores addr under name.
func (s *SettingsStore) PutAddress(_ context.Context, engine common.Address, name string, addr common.Address) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.settings[settingKey{engine, name}] = addr
	return nil
}
