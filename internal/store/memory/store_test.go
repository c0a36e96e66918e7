package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func TestMatchStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMatchStore(New())

	if err := s.Create(ctx, domain.Match{ID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, domain.Match{ID: 1}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrAlreadyExists", err)
	}
	if _, err := s.GetByID(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID(2) err = %v, want ErrNotFound", err)
	}
}

func TestMatchStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMatchStore(New())
	now := time.Now()
	old := now.Add(-2 * time.Hour)

	for id, st := range map[uint64]domain.MatchStatus{
		1: domain.MatchStatusOpen,
		2: domain.MatchStatusSettled,
		3: domain.MatchStatusOpen,
		4: domain.MatchStatusCancelled,
	} {
		m := domain.Match{ID: id, Status: st}
		if st.Finalized() {
			m.FinalizedAt = &old
		}
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	open := domain.MatchStatusOpen
	got, err := s.List(ctx, domain.MatchQuery{Status: &open})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("List(open) = %+v", got)
	}

	page, _ := s.List(ctx, domain.MatchQuery{ListOpts: domain.ListOpts{Limit: 2, Offset: 1}})
	if len(page) != 2 || page[0].ID != 2 {
		t.Fatalf("List page = %+v", page)
	}

	finalized, err := s.ListFinalizedBefore(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListFinalizedBefore: %v", err)
	}
	if len(finalized) != 2 {
		t.Fatalf("ListFinalizedBefore returned %d, want 2", len(finalized))
	}
}

func TestStakeStoreApply(t *testing.T) {
	ctx := context.Background()
	db := New()
	matches := NewMatchStore(db)
	stakes := NewStakeStore(db)
	alice := common.HexToAddress("0xa1")

	if err := matches.Create(ctx, domain.Match{ID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	zero, err := stakes.Get(ctx, 1, alice)
	if err != nil || !zero.IsZero() {
		t.Fatalf("Get before stake = %+v, %v", zero, err)
	}

	m, _ := matches.GetByID(ctx, 1)
	m.Totals[domain.OutcomeHome.Slot()].SetUint64(10)
	m.TotalStaked.SetUint64(10)
	st := domain.Stake{MatchID: 1, Participant: alice}
	st.Amounts[domain.OutcomeHome.Slot()].SetUint64(10)

	if err := stakes.Apply(ctx, m, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, _ := matches.GetByID(ctx, 1)
	if got.TotalStaked.Uint64() != 10 {
		t.Fatalf("TotalStaked = %s, want 10", got.TotalStaked.Dec())
	}
	list, _ := stakes.ListByMatch(ctx, 1)
	if len(list) != 1 || list[0].On(domain.OutcomeHome).Uint64() != 10 {
		t.Fatalf("ListByMatch = %+v", list)
	}

	if err := stakes.Apply(ctx, domain.Match{ID: 9}, domain.Stake{MatchID: 9}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Apply unknown match err = %v, want ErrNotFound", err)
	}
}

func TestClaimStoreFlag(t *testing.T) {
	ctx := context.Background()
	s := NewClaimStore(New())
	bob := common.HexToAddress("0xb0")

	c := domain.Claim{MatchID: 1, Participant: bob, Kind: domain.ClaimKindPayout}
	if err := s.MarkClaimed(ctx, c); err != nil {
		t.Fatalf("MarkClaimed: %v", err)
	}
	if err := s.MarkClaimed(ctx, c); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second MarkClaimed err = %v, want ErrAlreadyClaimed", err)
	}
	if err := s.Unmark(ctx, 1, bob); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	if _, err := s.Get(ctx, 1, bob); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after Unmark err = %v, want ErrNotFound", err)
	}
}

func TestAuditStoreFiltersByMatch(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(New())
	admin := common.HexToAddress("0xad")

	for _, e := range []domain.AuditEntry{
		{Event: "notify.match_created", MatchID: 1, Actor: admin},
		{Event: "notify.match_created", MatchID: 2, Actor: admin},
		{Event: "notify.match_opened", MatchID: 1, Actor: admin},
		{Event: "archive.matches"},
	} {
		if err := s.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	id := uint64(1)
	got, err := s.List(ctx, domain.AuditQuery{MatchID: &id})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Event != "notify.match_opened" || got[1].Event != "notify.match_created" {
		t.Fatalf("List(match 1) = %+v", got)
	}
	if got[0].Actor != admin || got[0].CreatedAt.IsZero() {
		t.Fatalf("entry = %+v", got[0])
	}

	all, _ := s.List(ctx, domain.AuditQuery{})
	if len(all) != 4 || all[0].Event != "archive.matches" {
		t.Fatalf("List(all) = %+v", all)
	}
}

func TestSettingsStoreScopedByEngine(t *testing.T) {
	ctx := context.Background()
	s := NewSettingsStore(New())
	engineA, engineB := common.HexToAddress("0xea"), common.HexToAddress("0xeb")
	signer := common.HexToAddress("0x99")

	if _, err := s.GetAddress(ctx, engineA, domain.SettingSigner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetAddress before write err = %v, want ErrNotFound", err)
	}
	if err := s.PutAddress(ctx, engineA, domain.SettingSigner, signer); err != nil {
		t.Fatalf("PutAddress: %v", err)
	}
	if got, err := s.GetAddress(ctx, engineA, domain.SettingSigner); err != nil || got != signer {
		t.Fatalf("GetAddress = %s, %v", got.Hex(), err)
	}
	if _, err := s.GetAddress(ctx, engineB, domain.SettingSigner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other engine sees the setting: %v", err)
	}
}

func TestNonceStoreSingleUse(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_750_000_000, 0)
	s := NewNonceStore(func() time.Time { return now })

	if ok, _ := s.Use(ctx, "k", time.Minute); !ok {
		t.Fatal("first Use rejected")
	}
	if ok, _ := s.Use(ctx, "k", time.Minute); ok {
		t.Fatal("second Use accepted")
	}
	if ok, _ := s.Use(ctx, "other", time.Minute); !ok {
		t.Fatal("distinct key rejected")
	}

	now = now.Add(time.Minute)
	if ok, _ := s.Use(ctx, "k", time.Minute); !ok {
		t.Fatal("expired key still held")
	}
}
