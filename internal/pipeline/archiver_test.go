package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingArchiver struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (r *recordingArchiver) ArchiveMatches(_ context.Context, before time.Time) (int64, error) {
	r.cutoffs = append(r.cutoffs, before)
	return r.n, r.err
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	rec := &recordingArchiver{n: 4}
	a := NewArchiver(rec, 30, nil)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	n, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 {
		t.Fatalf("archived = %d, want 4", n)
	}
	want := now.Add(-30 * 24 * time.Hour)
	if len(rec.cutoffs) != 1 || !rec.cutoffs[0].Equal(want) {
		t.Fatalf("cutoffs = %v, want [%v]", rec.cutoffs, want)
	}
}

func TestArchiverRunWrapsFailure(t *testing.T) {
	boom := errors.New("bucket gone")
	a := NewArchiver(&recordingArchiver{err: boom}, 1, nil)
	if _, err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestRunCronRejectsBadExpression(t *testing.T) {
	a := NewArchiver(&recordingArchiver{}, 1, nil)
	if err := a.RunCron(context.Background(), "every day"); err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
}

func TestRunCronStopsOnCancel(t *testing.T) {
	a := NewArchiver(&recordingArchiver{}, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.RunCron(ctx, "0 3 1 * *"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNextCronTime(t *testing.T) {
	base := time.Date(2026, 5, 14, 10, 7, 30, 0, time.UTC) // Thursday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 1 * *", time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 5, 14, 10, 15, 0, 0, time.UTC)},
		{"30 9-11 * * *", time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"5,8 10 14 5 *", time.Date(2026, 5, 14, 10, 8, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := nextCronTime(tc.expr, base)
			if err != nil {
				t.Fatalf("nextCronTime: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("next = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateCron(t *testing.T) {
	for _, expr := range []string{"0 3 1 * *", "*/5 * * * 1-5", "0 0 1 1,7 *"} {
		if err := ValidateCron(expr); err != nil {
			t.Errorf("ValidateCron(%q) = %v", expr, err)
		}
	}
	for _, expr := range []string{"", "* * * *", "60 * * * *", "* 24 * * *", "* * 0 * *", "*/0 * * * *", "5-1 * * * *"} {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("ValidateCron(%q) = nil, want error", expr)
		}
	}
}
