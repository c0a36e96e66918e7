package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

var bettor = common.HexToAddress("0xb0")

type fakeReader struct {
	matches map[uint64]domain.Match
	stakes  map[uint64]domain.Stake
	claimed bool
	reads   int
}

func (f *fakeReader) Match(_ context.Context, id uint64) (domain.Match, error) {
	f.reads++
	m, ok := f.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeReader) Matches(context.Context, domain.MatchQuery) ([]domain.Match, error) {
	out := make([]domain.Match, 0, len(f.matches))
	for _, m := range f.matches {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeReader) Stake(_ context.Context, id uint64, p common.Address) (domain.Stake, error) {
	if st, ok := f.stakes[id]; ok {
		return st, nil
	}
	return domain.Stake{MatchID: id, Participant: p}, nil
}

func (f *fakeReader) Stakes(_ context.Context, id uint64) ([]domain.Stake, error) {
	if st, ok := f.stakes[id]; ok {
		return []domain.Stake{st}, nil
	}
	return nil, nil
}

func (f *fakeReader) Claimed(context.Context, uint64, common.Address) (bool, error) {
	return f.claimed, nil
}

type mapCache struct {
	entries map[uint64]domain.Match
	fail    error
}

func (c *mapCache) Set(_ context.Context, m domain.Match) error {
	if c.fail != nil {
		return c.fail
	}
	c.entries[m.ID] = m
	return nil
}

func (c *mapCache) Get(_ context.Context, id uint64) (domain.Match, error) {
	m, ok := c.entries[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *mapCache) Invalidate(_ context.Context, id uint64) error {
	delete(c.entries, id)
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func settledMatch() (domain.Match, domain.Stake) {
	m := domain.Match{ID: 1, Status: domain.MatchStatusSettled, Result: domain.OutcomeHome, FeeBps: 500}
	m.Totals[domain.OutcomeHome.Slot()].SetUint64(100)
	m.Totals[domain.OutcomeAway.Slot()].SetUint64(300)
	m.TotalStaked.SetUint64(400)

	st := domain.Stake{MatchID: 1, Participant: bettor}
	st.Amounts[domain.OutcomeHome.Slot()].SetUint64(40)
	st.Amounts[domain.OutcomeAway.Slot()].SetUint64(10)
	return m, st
}

func TestGetMatchBackfillsCache(t *testing.T) {
	m, _ := settledMatch()
	reader := &fakeReader{matches: map[uint64]domain.Match{1: m}}
	cache := &mapCache{entries: map[uint64]domain.Match{}}
	svc := NewMatchService(reader, cache, quietLogger())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.GetMatch(ctx, 1); err != nil {
			t.Fatalf("GetMatch: %v", err)
		}
	}
	if reader.reads != 1 {
		t.Fatalf("engine reads = %d, want 1", reader.reads)
	}

	if _, err := svc.GetMatch(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing match err = %v", err)
	}
}

func TestGetMatchSurvivesCacheFailure(t *testing.T) {
	m, _ := settledMatch()
	reader := &fakeReader{matches: map[uint64]domain.Match{1: m}}
	cache := &mapCache{entries: map[uint64]domain.Match{}, fail: errors.New("redis down")}
	svc := NewMatchService(reader, cache, quietLogger())

	if _, err := svc.GetMatch(context.Background(), 1); err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
}

func TestPosition(t *testing.T) {
	m, st := settledMatch()
	reader := &fakeReader{
		matches: map[uint64]domain.Match{1: m},
		stakes:  map[uint64]domain.Stake{1: st},
	}
	svc := NewMatchService(reader, nil, quietLogger())

	pos, err := svc.Position(context.Background(), 1, bettor)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	// prize pool = 400 * 9500 / 10000 = 380; share = 40 * 380 / 100 = 152.
	if pos.Payout.Uint64() != 152 || pos.Total.Uint64() != 50 || !pos.Refund.IsZero() {
		t.Fatalf("position = payout %s total %s refund %s", pos.Payout.Dec(), pos.Total.Dec(), pos.Refund.Dec())
	}

	m.Status, m.Result = domain.MatchStatusCancelled, domain.OutcomeNone
	reader.matches[1] = m
	pos, err = svc.Position(context.Background(), 1, bettor)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.Refund.Uint64() != 50 || !pos.Payout.IsZero() {
		t.Fatalf("cancelled position = payout %s refund %s", pos.Payout.Dec(), pos.Refund.Dec())
	}
}
