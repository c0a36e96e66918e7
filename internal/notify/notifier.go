// Package notify delivers engine notifications to the outside world: the
// Redis signal bus, the audit log, operator alerts (Telegram, Discord) and
// signed webhooks. Alerts can be filtered by notification kind so operators
// receive only the events they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Sender is the interface that each alert channel must implement.
type Sender interface {
	// Send delivers an alert with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders. Notify only forwards
// kinds in the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	kinds   map[domain.NotificationKind]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// kinds listed in events are forwarded by Notify; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.NotificationKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.NotificationKind(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Allows reports whether alerts of the given kind pass the filter.
func (n *Notifier) Allows(kind domain.NotificationKind) bool {
	return len(n.kinds) == 0 || n.kinds[kind]
}

// Notify sends an alert to all senders if kind passes the filter.
func (n *Notifier) Notify(ctx context.Context, kind domain.NotificationKind, title, message string) error {
	if !n.Allows(kind) {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("kind", string(kind)),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends an alert to all senders regardless of kind.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the rest; failures are joined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
