package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// maxSignedBody caps the body read for signature verification.
const maxSignedBody = 64 << 10

type callerKey struct{}

// Caller returns the wallet address authenticated by WalletAuth.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}

// WithCaller returns a context carrying addr as the authenticated caller.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// WalletAuth authenticates the caller of a request from an EIP-191 signature
// over its method, path, timestamp and body hash (see crypto.RequestMessage).
// Each signed message is accepted once: nonces remembers it for twice the
// window, after which the timestamp check rejects it anyway. now may be nil.
func WalletAuth(window time.Duration, nonces domain.NonceStore, now func() time.Time, logger *slog.Logger) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.Header.Get(crypto.HeaderWalletAddress)
			if addr == "" {
				writeError(w, http.StatusUnauthorized, "missing wallet signature")
				return
			}

			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
				if err != nil {
					writeError(w, http.StatusBadRequest, "unreadable request body")
					return
				}
				if len(body) > maxSignedBody {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			caller, digest, err := crypto.VerifyRequest(crypto.SignedRequest{
				Method:    r.Method,
				Path:      r.URL.Path,
				Body:      body,
				Address:   addr,
				Timestamp: r.Header.Get(crypto.HeaderWalletTimestamp),
				Signature: r.Header.Get(crypto.HeaderWalletSignature),
			}, now(), window)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			// Keyed on the signed message rather than the signature bytes,
			// which are malleable.
			fresh, err := nonces.Use(r.Context(), caller.Hex()+":"+digest.Hex(), 2*window)
			if err != nil {
				logger.ErrorContext(r.Context(), "nonce store unavailable",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusServiceUnavailable, "signature replay check unavailable")
				return
			}
			if !fresh {
				writeError(w, http.StatusUnauthorized, "wallet signature already used")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
