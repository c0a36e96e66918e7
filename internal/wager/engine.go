// Package wager implements the pari-mutuel engine: match lifecycle, stake
// accounting, signed settlement, payout computation and exactly-once fund
// release. Every mutating operation on a match runs under that match's
// transition guard.
package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Config holds the identities the engine is bound to.
type Config struct {
	// Identity is the engine address included in every signed settlement.
	Identity common.Address
	Admin    common.Address
	Signer   common.Address
	Treasury common.Address

	// MaxSignatureAge rejects settlement timestamps further than this from
	// the current time in either direction. Zero disables the check.
	MaxSignatureAge time.Duration

	// LockTTL is the expiry of a distributed match lock. The guard extends
	// it while an operation runs, so it bounds how long a crashed holder
	// blocks the match, not how long an operation may take.
	LockTTL time.Duration
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Matches domain.MatchStore
	Stakes  domain.StakeStore
	Claims  domain.ClaimStore
	Vault   domain.Vault

	// Optional.
	Settings domain.SettingsStore
	Sink     domain.NotificationSink
	Locks    domain.LockManager
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Engine is the wagering and settlement core.
type Engine struct {
	identity common.Address
	admin    common.Address
	maxAge   time.Duration

	matches domain.MatchStore
	stakes  domain.StakeStore
	claims  domain.ClaimStore
	vault   domain.Vault
	sink    domain.NotificationSink

	// settings overrides signer and treasury once the administrator has
	// changed them, so every instance sharing the store agrees.
	settings domain.SettingsStore

	guard    *guard
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	signer   common.Address
	treasury common.Address
}

// New validates cfg and deps and returns a ready Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	var errs []error
	if cfg.Identity == (common.Address{}) {
		errs = append(errs, errors.New("zero identity"))
	}
	if cfg.Admin == (common.Address{}) {
		errs = append(errs, errors.New("zero admin"))
	}
	if cfg.Signer == (common.Address{}) {
		errs = append(errs, errors.New("zero signer"))
	}
	if cfg.Treasury == (common.Address{}) {
		errs = append(errs, errors.New("zero treasury"))
	}
	if deps.Matches == nil || deps.Stakes == nil || deps.Claims == nil {
		errs = append(errs, errors.New("nil store"))
	}
	if deps.Vault == nil {
		errs = append(errs, errors.New("nil vault"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("wager: new engine: %w", errors.Join(errs...))
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Engine{
		identity: cfg.Identity,
		admin:    cfg.Admin,
		maxAge:   cfg.MaxSignatureAge,
		matches:  deps.Matches,
		stakes:   deps.Stakes,
		claims:   deps.Claims,
		vault:    deps.Vault,
		sink:     deps.Sink,
		settings: deps.Settings,
		guard:    newGuard(deps.Locks, cfg.LockTTL),
		observer: observer,
		logger:   logger.With(slog.String("component", "wager")),
		now:      now,
		signer:   cfg.Signer,
		treasury: cfg.Treasury,
	}, nil
}

// emit delivers n to the sink. Failures are logged and never undo the
// state change that produced the notification.
func (e *Engine) emit(ctx context.Context, n domain.Notification) {
	if e.sink == nil {
		return
	}
	n.ID = uuid.New().String()
	n.At = e.now().UTC()
	if err := e.sink.Emit(ctx, n); err != nil {
		e.logger.WarnContext(ctx, "notification not delivered",
			slog.String("kind", string(n.Kind)),
			slog.Uint64("match_id", n.MatchID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) requireAdmin(caller common.Address) error {
	if caller != e.admin {
		return fmt.Errorf("caller %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	return nil
}

// locked runs fn with the match guard held. fn receives the guarded context,
// which must be passed to every collaborator it calls.
func (e *Engine) locked(ctx context.Context, op string, id uint64, fn func(ctx context.Context) error) error {
	start := e.now()
	gctx, release, err := e.guard.acquire(ctx, id)
	if err != nil {
		e.observer.OperationDone(op, err, e.now().Sub(start))
		return fmt.Errorf("wager: %s %d: %w", op, id, err)
	}
	defer release()

	err = fn(gctx)
	if err != nil && ctx.Err() == nil {
		if cause := context.Cause(gctx); errors.Is(cause, domain.ErrLockLost) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
	}
	e.observer.OperationDone(op, err, e.now().Sub(start))
	if err != nil {
		return fmt.Errorf("wager: %s %d: %w", op, id, err)
	}
	return nil
}

func amountOf(v *uint256.Int) uint256.Int {
	if v == nil {
		return uint256.Int{}
	}
	return *v
}
