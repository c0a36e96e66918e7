package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Header names attached to signed webhook deliveries.
const (
	HeaderWebhookTimestamp = "X-Wager-Timestamp"
	HeaderWebhookSignature = "X-Wager-Signature"
)

// WebhookAuth signs outbound webhook bodies so receivers can verify origin.
type WebhookAuth struct {
	Secret string
}

// Headers returns the signature headers for body at the current time.
// The signature is HMAC-SHA256(secret, timestamp + "." + body) encoded as
// base64.
func (h *WebhookAuth) Headers(body []byte) map[string]string {
	return h.HeadersAt(body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (h *WebhookAuth) HeadersAt(body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderWebhookTimestamp: ts,
		HeaderWebhookSignature: hmacSHA256Base64([]byte(h.Secret), ts+"."+string(body)),
	}
}

// Verify checks a received signature in constant time.
func (h *WebhookAuth) Verify(body []byte, ts, signature string) bool {
	want := hmacSHA256Base64([]byte(h.Secret), ts+"."+string(body))
	return hmac.Equal([]byte(want), []byte(signature))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *WebhookAuth) String() string {
	if len(h.Secret) <= 4 {
		return "WebhookAuth{secret=****}"
	}
	return fmt.Sprintf("WebhookAuth{secret=%s****}", h.Secret[:4])
}
