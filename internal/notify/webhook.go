package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
)

// WebhookSender posts raw notification JSON to an operator endpoint. Each
// delivery carries HMAC headers (see crypto.WebhookAuth) so the receiver can
// check it came from this engine.
type WebhookSender struct {
	url    string
	auth   *crypto.WebhookAuth
	client *http.Client
}

// NewWebhookSender creates a WebhookSender. An empty secret sends unsigned
// deliveries.
func NewWebhookSender(url, secret string) *WebhookSender {
	w := &WebhookSender{url: url, client: newHTTPClient()}
	if secret != "" {
		w.auth = &crypto.WebhookAuth{Secret: secret}
	}
	return w
}

// Deliver posts payload to the webhook URL.
func (w *WebhookSender) Deliver(ctx context.Context, payload []byte) error {
	var headers map[string]string
	if w.auth != nil {
		headers = w.auth.Headers(payload)
	}
	if err := postJSON(ctx, w.client, w.url, payload, headers); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (w *WebhookSender) Name() string {
	return "webhook"
}
