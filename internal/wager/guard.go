package wager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

type heldKey struct{}

// heldMatches is the set of match ids whose guard the context's caller owns.
type heldMatches map[uint64]struct{}

func holding(ctx context.Context, id uint64) bool {
	held, _ := ctx.Value(heldKey{}).(heldMatches)
	_, ok := held[id]
	return ok
}

func withHeld(ctx context.Context, id uint64) context.Context {
	parent, _ := ctx.Value(heldKey{}).(heldMatches)
	held := make(heldMatches, len(parent)+1)
	for k := range parent {
		held[k] = struct{}{}
	}
	held[id] = struct{}{}
	return context.WithValue(ctx, heldKey{}, held)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// guard serializes operations per match. A call that arrives with a context
// already holding the same match fails with ErrReentrantCall instead of
// deadlocking. When locks is set the guard also takes a distributed lock so
// several engine instances can share one store. The lock is extended while
// the operation runs; losing it cancels the operation's context.
type guard struct {
	mu    sync.Mutex
	slots map[uint64]*slot
	locks domain.LockManager
	ttl   time.Duration
}

func newGuard(locks domain.LockManager, ttl time.Duration) *guard {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &guard{slots: make(map[uint64]*slot), locks: locks, ttl: ttl}
}

func (g *guard) acquire(ctx context.Context, id uint64) (context.Context, func(), error) {
	if holding(ctx, id) {
		return nil, nil, domain.ErrReentrantCall
	}

	g.mu.Lock()
	s, ok := g.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		g.slots[id] = s
	}
	s.refs++
	g.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		g.drop(id, s)
		return nil, nil, ctx.Err()
	}

	if g.locks == nil {
		release := func() {
			<-s.ch
			g.drop(id, s)
		}
		return withHeld(ctx, id), release, nil
	}

	lock, err := g.acquireRemote(ctx, id)
	if err != nil {
		<-s.ch
		g.drop(id, s)
		return nil, nil, err
	}
	gctx, cancel := context.WithCancelCause(ctx)
	stop := g.keepAlive(lock, cancel)
	release := func() {
		stop()
		lock.Release()
		cancel(nil)
		<-s.ch
		g.drop(id, s)
	}
	return withHeld(gctx, id), release, nil
}

// keepAlive extends lock every third of the TTL until stop is called. If the
// lock is lost, or cannot be extended before it would expire, cancel ends the
// guarded operation with ErrLockLost.
func (g *guard) keepAlive(lock domain.Lock, cancel context.CancelCauseFunc) (stop func()) {
	interval := g.ttl / 3
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(interval)
		defer t.Stop()
		expires := time.Now().Add(g.ttl)
		for {
			select {
			case <-done:
				return
			case <-t.C:
			}
			ctx, cancelExtend := context.WithTimeout(context.Background(), interval)
			err := lock.Extend(ctx, g.ttl)
			cancelExtend()
			switch {
			case err == nil:
				expires = time.Now().Add(g.ttl)
			case errors.Is(err, domain.ErrLockLost), !time.Now().Add(interval).Before(expires):
				cancel(fmt.Errorf("match lock: %w", domain.ErrLockLost))
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}

// acquireRemote retries the distributed lock until it is free or ctx ends.
func (g *guard) acquireRemote(ctx context.Context, id uint64) (domain.Lock, error) {
	key := fmt.Sprintf("match:%d", id)
	for {
		lock, err := g.locks.Acquire(ctx, key, g.ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("match lock: %w", err)
		}
		t := time.NewTimer(lockRetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (g *guard) drop(id uint64, s *slot) {
	g.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, id)
	}
	g.mu.Unlock()
}
