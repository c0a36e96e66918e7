package wager

import (
	"testing"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func TestCreateMatch(t *testing.T) {
	h := newHarness(t)
	start := h.now.Add(time.Hour)

	m, err := h.engine.CreateMatch(h.ctx, adminAddr, 1, start, 300)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if m.Status != domain.MatchStatusCreated || m.Result != domain.OutcomeNone || m.FeeBps != 300 {
		t.Fatalf("created match = %+v", m)
	}
	if !m.TotalStaked.IsZero() {
		t.Fatalf("TotalStaked = %s, want 0", m.TotalStaked.Dec())
	}

	n := h.sink.last()
	if n.Kind != domain.NotifyMatchCreated || n.MatchID != 1 || !n.StartTime.Equal(start) {
		t.Fatalf("notification = %+v", n)
	}

	_, err = h.engine.CreateMatch(h.ctx, adminAddr, 1, start, 300)
	wantErr(t, err, domain.ErrAlreadyExists)
}

func TestCreateMatchFeeBounds(t *testing.T) {
	h := newHarness(t)

	if _, err := h.engine.CreateMatch(h.ctx, adminAddr, 1, h.now, domain.MaxFeeBps); err != nil {
		t.Fatalf("fee at cap rejected: %v", err)
	}
	_, err := h.engine.CreateMatch(h.ctx, adminAddr, 2, h.now, domain.MaxFeeBps+1)
	wantErr(t, err, domain.ErrFeeTooHigh)

	if _, err := h.engine.Match(h.ctx, 2); err == nil {
		t.Fatal("match 2 exists after failed create")
	}
}

func TestAdminOnlyLifecycle(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 300)

	_, err := h.engine.CreateMatch(h.ctx, alice, 2, h.now, 100)
	wantErr(t, err, domain.ErrUnauthorized)
	wantErr(t, h.engine.CloseMatch(h.ctx, alice, 1), domain.ErrUnauthorized)
	wantErr(t, h.engine.CancelMatch(h.ctx, alice, 1), domain.ErrUnauthorized)
}

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(h *harness) error
		want error
	}{
		{"close before open", func(h *harness) error {
			h.engine.CreateMatch(h.ctx, adminAddr, 1, h.now, 0)
			return h.engine.CloseMatch(h.ctx, adminAddr, 1)
		}, domain.ErrBadStatus},
		{"open twice", func(h *harness) error {
			h.openMatch(1, 0)
			return h.engine.OpenMatch(h.ctx, adminAddr, 1)
		}, domain.ErrBadStatus},
		{"reopen closed", func(h *harness) error {
			h.openMatch(1, 0)
			h.close(1)
			return h.engine.OpenMatch(h.ctx, adminAddr, 1)
		}, domain.ErrBadStatus},
		{"open unknown", func(h *harness) error {
			return h.engine.OpenMatch(h.ctx, adminAddr, 42)
		}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			wantErr(t, tt.run(h), tt.want)
		})
	}
}

func TestCancelMatch(t *testing.T) {
	for _, st := range []string{"created", "open", "closed"} {
		t.Run("from "+st, func(t *testing.T) {
			h := newHarness(t)
			h.engine.CreateMatch(h.ctx, adminAddr, 1, h.now, 300)
			if st != "created" {
				h.engine.OpenMatch(h.ctx, adminAddr, 1)
			}
			if st == "closed" {
				h.close(1)
			}

			if err := h.engine.CancelMatch(h.ctx, adminAddr, 1); err != nil {
				t.Fatalf("CancelMatch: %v", err)
			}
			m := h.match(1)
			if m.Status != domain.MatchStatusCancelled || m.Result != domain.OutcomeNone || m.SettledBy != adminAddr {
				t.Fatalf("match = %+v", m)
			}
			if m.FinalizedAt == nil {
				t.Fatal("FinalizedAt not set")
			}

			n := h.sink.last()
			if n.Kind != domain.NotifyMatchSettled || n.Outcome != domain.OutcomeNone || n.Account != adminAddr {
				t.Fatalf("notification = %+v", n)
			}

			wantErr(t, h.engine.CancelMatch(h.ctx, adminAddr, 1), domain.ErrBadStatus)
		})
	}
}

func TestCancelSettledMatchFails(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 300)
	h.close(1)
	h.mustSettle(1, domain.OutcomeHome)

	wantErr(t, h.engine.CancelMatch(h.ctx, adminAddr, 1), domain.ErrBadStatus)
}

func TestLifecycleNotifications(t *testing.T) {
	h := newHarness(t)
	h.openMatch(1, 0)
	h.close(1)

	want := []domain.NotificationKind{
		domain.NotifyMatchCreated,
		domain.NotifyMatchOpened,
		domain.NotifyMatchClosed,
	}
	got := h.sink.kinds()
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
}
