// Package memory provides in-process implementations of the domain stores.
// They back the engine in tests and in single-node deployments that run
// with storage.driver = "memory".
package memory

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

type participantKey struct {
	matchID     uint64
	participant common.Address
}

// DB is the shared state behind the memory stores. Stakes and match totals
// live together so StakeStore.Apply can update both under one lock.
type DB struct {
	mu      sync.RWMutex
	matches map[uint64]domain.Match
	stakes  map[participantKey]domain.Stake
	claims  map[participantKey]domain.Claim
	audit   []domain.AuditEntry

	settings map[settingKey]common.Address
}

type settingKey struct {
	engine common.Address
	name   string
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		matches: make(map[uint64]domain.Match),
		stakes:  make(map[participantKey]domain.Stake),
		claims:  make(map[participantKey]domain.Claim),

		settings: make(map[settingKey]common.Address),
	}
}
