// Package server exposes the wagering engine over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/server/middleware"
	"github.com/alanyoungcy/parimutuel/internal/server/ws"
	"github.com/alanyoungcy/parimutuel/internal/store/memory"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, API key authentication is disabled

	// WalletWindow bounds the age of wallet request signatures.
	WalletWindow time.Duration

	// RateLimit requests per RateWindow per client IP. Zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Matches    *handler.MatchHandler
	Stakes     *handler.StakeHandler
	Settlement *handler.SettlementHandler
	Claims     *handler.ClaimHandler
	Admin      *handler.AdminHandler
	Treasury   *handler.TreasuryHandler
	// Audit is optional.
	Audit *handler.AuditHandler
}

// Extras are the optional collaborators of the server.
type Extras struct {
	Hub      *ws.Hub
	Limiter  domain.RateLimiter
	Metrics  http.Handler
	Observer middleware.HTTPObserver
	// Nonces remembers used wallet signatures. Defaults to an in-process
	// store, which only protects a single instance.
	Nonces domain.NonceStore
	// Now is the clock used for wallet signatures.
	Now func() time.Time
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
func NewServer(cfg Config, handlers Handlers, extras Extras, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, extras, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// NewHandler builds the routed and middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, extras Extras, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	window := cfg.WalletWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	nonces := extras.Nonces
	if nonces == nil {
		nonces = memory.NewNonceStore(extras.Now)
	}
	signed := middleware.WalletAuth(window, nonces, extras.Now, logger)
	wallet := func(f http.HandlerFunc) http.Handler { return signed(f) }

	// Public.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if extras.Metrics != nil {
		mux.Handle("GET /metrics", extras.Metrics)
	}

	// Matches.
	mux.Handle("POST /api/matches", wallet(handlers.Matches.CreateMatch))
	mux.HandleFunc("GET /api/matches", handlers.Matches.ListMatches)
	mux.HandleFunc("GET /api/matches/{id}", handlers.Matches.GetMatch)
	mux.Handle("POST /api/matches/{id}/open", wallet(handlers.Matches.OpenMatch))
	mux.Handle("POST /api/matches/{id}/close", wallet(handlers.Matches.CloseMatch))
	mux.Handle("POST /api/matches/{id}/cancel", wallet(handlers.Matches.CancelMatch))
	mux.HandleFunc("GET /api/matches/{id}/stakes", handlers.Matches.ListStakes)
	mux.HandleFunc("GET /api/matches/{id}/stakes/{address}", handlers.Matches.GetPosition)
	mux.HandleFunc("GET /api/matches/{id}/payout/{address}", handlers.Matches.GetPayout)
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/matches/{id}/audit", handlers.Audit.ListMatchAudit)
	}

	// Staking, settlement and claims.
	mux.Handle("POST /api/matches/{id}/stakes", wallet(handlers.Stakes.PlaceStake))
	mux.Handle("POST /api/matches/{id}/settle", wallet(handlers.Settlement.Settle))
	mux.Handle("POST /api/matches/{id}/claim", wallet(handlers.Claims.Claim))
	mux.Handle("POST /api/matches/{id}/refund", wallet(handlers.Claims.Refund))

	// Administration.
	mux.HandleFunc("GET /api/admin/signer", handlers.Admin.GetSigner)
	mux.Handle("PUT /api/admin/signer", wallet(handlers.Admin.SetSigner))
	mux.HandleFunc("GET /api/admin/treasury", handlers.Admin.GetTreasury)
	mux.Handle("PUT /api/admin/treasury", wallet(handlers.Admin.SetTreasury))
	mux.Handle("POST /api/admin/mint", wallet(handlers.Admin.Mint))

	// Treasury and balances.
	mux.HandleFunc("GET /api/treasury", handlers.Treasury.GetTreasury)
	mux.Handle("POST /api/treasury/withdraw", wallet(handlers.Treasury.Withdraw))
	mux.HandleFunc("GET /api/balances/{address}", handlers.Treasury.GetBalance)

	if extras.Hub != nil {
		mux.HandleFunc("GET /ws", extras.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if extras.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(extras.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger, extras.Observer)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
