package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MatchQuery filters match listings.
type MatchQuery struct {
	ListOpts
	Status *MatchStatus
}

// MatchStore persists matches.
type MatchStore interface {
	// Create fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, id uint64) (Match, error)
	Update(ctx context.Context, m Match) error
	List(ctx context.Context, q MatchQuery) ([]Match, error)
	ListFinalizedBefore(ctx context.Context, before time.Time, limit int) ([]Match, error)
}

// StakeStore persists participant stakes.
type StakeStore interface {
	// Get returns a zero Stake when the participant has never staked.
	Get(ctx context.Context, matchID uint64, participant common.Address) (Stake, error)
	ListByMatch(ctx context.Context, matchID uint64) ([]Stake, error)
	// Apply writes the match totals and the participant stake atomically.
	Apply(ctx context.Context, m Match, s Stake) error
}

// ClaimStore persists claim flags.
type ClaimStore interface {
	Get(ctx context.Context, matchID uint64, participant common.Address) (Claim, error)
	// MarkClaimed fails with ErrAlreadyClaimed if a claim already exists.
	MarkClaimed(ctx context.Context, c Claim) error
	// Unmark removes a claim whose transfer failed.
	Unmark(ctx context.Context, matchID uint64, participant common.Address) error
	ListByMatch(ctx context.Context, matchID uint64) ([]Claim, error)
}

// AuditEntry is a single audit log row. MatchID is zero for entries that
// concern no single match, Actor is zero for system events.
type AuditEntry struct {
	ID        int64
	Event     string
	MatchID   uint64
	Actor     common.Address
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditQuery filters audit listings.
type AuditQuery struct {
	ListOpts
	MatchID *uint64
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, e AuditEntry) error
	// List returns entries newest first.
	List(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}

// Names of the engine settings kept in a SettingsStore.
const (
	SettingSigner   = "signer"
	SettingTreasury = "treasury"
)

// SettingsStore persists the administrator-managed addresses of an engine,
// keyed by engine identity so deployments can share a database.
type SettingsStore interface {
	// GetAddress returns ErrNotFound when the setting was never written.
	GetAddress(ctx context.Context, engine common.Address, name string) (common.Address, error)
	PutAddress(ctx context.Context, engine common.Address, name string, addr common.Address) error
}
