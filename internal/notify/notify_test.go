package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	fail   error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.fail
}

func (r *recordingSender) Name() string { return "recording" }

type recordingBus struct {
	published map[string][][]byte
	streamed  [][]byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.streamed = append(b.streamed, payload)
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingCache struct{ invalidated []uint64 }

func (c *recordingCache) Set(context.Context, domain.Match) error { return nil }
func (c *recordingCache) Get(context.Context, uint64) (domain.Match, error) {
	return domain.Match{}, domain.ErrNotFound
}
func (c *recordingCache) Invalidate(_ context.Context, id uint64) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func TestNotifierFilter(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, []string{" match_settled ", "claimed"}, discardLogger())

	ctx := context.Background()
	_ = n.Notify(ctx, domain.NotifyStakePlaced, "stake", "")
	_ = n.Notify(ctx, domain.NotifyMatchSettled, "settled", "")
	_ = n.NotifyAll(ctx, "all", "")

	if got := strings.Join(s.titles, ","); got != "settled,all" {
		t.Fatalf("delivered %q", got)
	}
}

func TestNotifierJoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSender{}
	bad := &recordingSender{fail: boom}
	n := NewNotifier([]Sender{bad, ok}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(ok.titles) != 1 {
		t.Fatalf("second sender skipped after first failed")
	}
}

func TestPublisherFansOut(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
		sigOK    bool
	)
	auth := &crypto.WebhookAuth{Secret: "s3cret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = body
		sigOK = auth.Verify(body, r.Header.Get(crypto.HeaderWebhookTimestamp), r.Header.Get(crypto.HeaderWebhookSignature))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	cache := &recordingCache{}
	audit := memory.NewAuditStore(memory.New())
	alerts := &recordingSender{}

	p := NewPublisher(PublisherConfig{
		Bus:      bus,
		Audit:    audit,
		Notifier: NewNotifier([]Sender{alerts}, nil, discardLogger()),
		Webhooks: []*WebhookSender{NewWebhookSender(srv.URL, "s3cret")},
		Cache:    cache,
		Decimals: 6,
		Logger:   discardLogger(),
	})

	n := domain.Notification{
		ID:      "n-1",
		Kind:    domain.NotifyStakePlaced,
		MatchID: 9,
		Account: common.HexToAddress("0xb0"),
		Outcome: domain.OutcomeDraw,
	}
	n.Amount.SetUint64(2_500_000)

	if err := p.Emit(context.Background(), n); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if len(bus.published["wager:stake_placed"]) != 1 || len(bus.streamed) != 1 {
		t.Fatalf("bus = %+v", bus)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != 9 {
		t.Fatalf("invalidated = %v", cache.invalidated)
	}
	entries, _ := audit.List(context.Background(), domain.AuditQuery{})
	if len(entries) != 1 || entries[0].Event != "notify.stake_placed" || entries[0].Detail["amount"] != "2500000" {
		t.Fatalf("audit = %+v", entries)
	}
	if len(alerts.titles) != 1 || alerts.titles[0] != "Stake on match 9" {
		t.Fatalf("alerts = %v", alerts.titles)
	}

	mu.Lock()
	defer mu.Unlock()
	if !sigOK {
		t.Fatal("webhook signature did not verify")
	}
	var got domain.Notification
	if err := json.Unmarshal(received, &got); err != nil {
		t.Fatalf("webhook body: %v", err)
	}
	if got.Outcome != domain.OutcomeDraw || got.Amount.Uint64() != 2_500_000 {
		t.Fatalf("webhook notification = %+v", got)
	}
}

func TestPublisherReportsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	p := NewPublisher(PublisherConfig{
		Bus:      bus,
		Webhooks: []*WebhookSender{NewWebhookSender(srv.URL, "")},
		Logger:   discardLogger(),
	})

	err := p.Emit(context.Background(), domain.Notification{Kind: domain.NotifySignerUpdated})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want status 502", err)
	}
	if len(bus.published["wager:signer_updated"]) != 1 {
		t.Fatal("bus skipped because a later output failed")
	}
}

func TestDescribe(t *testing.T) {
	n := domain.Notification{Kind: domain.NotifyPoolRolledOver, MatchID: 4, Account: common.HexToAddress("0x7e")}
	n.Amount.SetUint64(1_500_000)
	title, msg := describe(n, 6)
	if title != "Match 4 had no winners" || !strings.Contains(msg, "1.5") {
		t.Fatalf("describe = %q, %q", title, msg)
	}

	cancel := domain.Notification{Kind: domain.NotifyMatchSettled, MatchID: 2}
	if title, _ := describe(cancel, 6); title != "Match 2 cancelled" {
		t.Fatalf("cancel title = %q", title)
	}
}

func TestTelegramSender(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "pool_rolled_over", "x"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if body["chat_id"] != "42" || !strings.HasPrefix(body["text"], `*pool\_rolled\_over*`) {
		t.Fatalf("body = %v", body)
	}
}

type countingSink struct {
	n    int
	fail error
}

func (c *countingSink) Emit(context.Context, domain.Notification) error {
	c.n++
	return c.fail
}

func TestSinksDeliverToEveryone(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{fail: boom}, &countingSink{}
	sinks := Sinks{a, nil, b}

	err := sinks.Emit(context.Background(), domain.Notification{Kind: domain.NotifyMatchOpened, MatchID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("deliveries = %d, %d", a.n, b.n)
	}
}
