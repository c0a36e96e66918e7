package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const (
	// ChannelPrefix prefixes the pub/sub channel of every kind, e.g.
	// "wager:stake_placed". Subscribers use ChannelPrefix+"*" for all.
	ChannelPrefix = "wager:"
	// Stream is the durable stream every notification is appended to.
	Stream = "wager-notifications"
)

// PublisherConfig wires the Publisher's outputs. Every field is optional.
type PublisherConfig struct {
	Bus      domain.SignalBus
	Audit    domain.AuditStore
	Notifier *Notifier
	Webhooks []*WebhookSender
	// Cache entries are dropped whenever a match changes state.
	Cache domain.MatchCache
	// Decimals of the settlement token, used to render alert amounts.
	Decimals int32
	Logger   *slog.Logger
}

// Publisher implements domain.NotificationSink by fanning each notification
// out to every configured output. Every output is attempted; failures are
// joined into the returned error.
type Publisher struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *Notifier
	webhooks []*WebhookSender
	cache    domain.MatchCache
	decimals int32
	logger   *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		bus:      cfg.Bus,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		webhooks: cfg.Webhooks,
		cache:    cfg.Cache,
		decimals: cfg.Decimals,
		logger:   logger.With(slog.String("component", "publisher")),
	}
}

// Emit publishes n.
func (p *Publisher) Emit(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", n.Kind, err)
	}

	var errs []error

	if p.cache != nil && concernsMatch(n.Kind) {
		if err := p.cache.Invalidate(ctx, n.MatchID); err != nil {
			errs = append(errs, fmt.Errorf("invalidate match %d: %w", n.MatchID, err))
		}
	}

	if p.bus != nil {
		if err := p.bus.Publish(ctx, ChannelPrefix+string(n.Kind), payload); err != nil {
			errs = append(errs, err)
		}
		if err := p.bus.StreamAppend(ctx, Stream, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if p.audit != nil {
		var detail map[string]any
		if err := json.Unmarshal(payload, &detail); err != nil {
			errs = append(errs, err)
		} else if err := p.audit.Log(ctx, domain.AuditEntry{
			Event:   "notify." + string(n.Kind),
			MatchID: n.MatchID,
			Actor:   n.Account,
			Detail:  detail,
		}); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}

	if p.notifier.Enabled() {
		title, message := describe(n, p.decimals)
		if err := p.notifier.Notify(ctx, n.Kind, title, message); err != nil {
			errs = append(errs, err)
		}
	}

	for _, w := range p.webhooks {
		if err := w.Deliver(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: emit %s: %w", n.Kind, errors.Join(errs...))
	}

	p.logger.DebugContext(ctx, "notification published",
		slog.String("kind", string(n.Kind)),
		slog.Uint64("match_id", n.MatchID),
	)
	return nil
}

// concernsMatch reports whether kind changes the state of a match.
func concernsMatch(kind domain.NotificationKind) bool {
	switch kind {
	case domain.NotifyMatchCreated, domain.NotifyMatchOpened, domain.NotifyMatchClosed,
		domain.NotifyStakePlaced, domain.NotifyMatchSettled:
		return true
	}
	return false
}

// Compile-time interface check.
var _ domain.NotificationSink = (*Publisher)(nil)

// Sinks fans a notification out to several sinks. Nil entries are skipped.
type Sinks []domain.NotificationSink

// Emit implements domain.NotificationSink.
func (s Sinks) Emit(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
