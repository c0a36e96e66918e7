package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/parimutuel/internal/config"
	"github.com/alanyoungcy/parimutuel/internal/metrics"
	"github.com/alanyoungcy/parimutuel/internal/notify"
	"github.com/alanyoungcy/parimutuel/internal/pipeline"
	"github.com/alanyoungcy/parimutuel/internal/server"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/server/ws"
	"github.com/alanyoungcy/parimutuel/internal/service"
	"github.com/alanyoungcy/parimutuel/internal/treasury"
	"github.com/alanyoungcy/parimutuel/internal/vault"
	"github.com/alanyoungcy/parimutuel/internal/wager"
)

// runtime is the engine and everything serving it.
type runtime struct {
	engine   *wager.Engine
	treasury *treasury.Treasury
	recorder *metrics.Recorder
	hub      *ws.Hub
	server   *server.Server
}

// ServeMode runs the HTTP API, the WebSocket hub and the engine.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	rt, err := a.buildRuntime(ctx, deps)
	if err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, rt)
	return g.Wait()
}

// ArchiveMode performs a single archive run and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if _, err := a.newArchiver(deps).Run(ctx); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return nil
}

// FullMode serves the API and, when enabled, archives finalized matches on
// the configured cron schedule.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	rt, err := a.buildRuntime(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, rt)

	if deps.Archiver != nil {
		archiver := a.newArchiver(deps)
		g.Go(func() error {
			return archiver.RunCron(ctx, a.cfg.Archive.Cron)
		})
	} else {
		a.logger.InfoContext(ctx, "archive disabled; set archive.enabled to snapshot finalized matches")
	}

	return g.Wait()
}

func (a *App) newArchiver(deps *Dependencies) *pipeline.Archiver {
	return pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
}

// buildRuntime assembles the engine, its notification fan-out, the treasury
// and the HTTP server from the wired dependencies.
func (a *App) buildRuntime(ctx context.Context, deps *Dependencies) (*runtime, error) {
	ec := a.cfg.Engine
	decimals := int32(ec.TokenDecimals)
	rt := &runtime{recorder: metrics.NewRecorder(decimals)}

	if a.cfg.Server.WebSocket {
		rt.hub = ws.NewHub(deps.Bus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
			Channel:   notify.ChannelPrefix + "*",
		})
	}

	publisher := notify.NewPublisher(notify.PublisherConfig{
		Bus:      deps.Bus,
		Audit:    deps.Audit,
		Notifier: deps.Notifier,
		Webhooks: deps.Webhooks,
		Cache:    deps.Cache,
		Decimals: decimals,
		Logger:   a.logger,
	})
	sinks := notify.Sinks{publisher}
	// Without a bus the hub is fed in-process.
	if rt.hub != nil && deps.Bus == nil {
		sinks = append(sinks, rt.hub)
	}

	escrow, err := vault.NewEscrow(deps.Ledger, config.Address(ec.Escrow))
	if err != nil {
		return nil, fmt.Errorf("build escrow: %w", err)
	}

	rt.engine, err = wager.New(wager.Config{
		Identity:        config.Address(ec.Contract),
		Admin:           config.Address(ec.Admin),
		Signer:          config.Address(ec.Signer),
		Treasury:        config.Address(ec.Treasury),
		MaxSignatureAge: ec.MaxSignatureAge.Duration,
		LockTTL:         ec.GuardLockTTL.Duration,
	}, wager.Deps{
		Matches:  deps.Matches,
		Stakes:   deps.Stakes,
		Claims:   deps.Claims,
		Settings: deps.Settings,
		Vault:    escrow,
		Sink:     sinks,
		Locks:    deps.Locks,
		Observer: rt.recorder,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	rt.treasury, err = treasury.New(config.Address(ec.Treasury), config.Address(ec.TreasuryOwner), deps.Ledger, sinks, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build treasury: %w", err)
	}

	svc := service.NewMatchService(rt.engine, deps.Cache, a.logger)
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.Checks, a.cfg.Mode, a.logger),
		Matches:    handler.NewMatchHandler(rt.engine, svc, a.logger),
		Stakes:     handler.NewStakeHandler(rt.engine, a.logger),
		Settlement: handler.NewSettlementHandler(rt.engine, a.logger),
		Claims:     handler.NewClaimHandler(rt.engine, a.logger),
		Admin:      handler.NewAdminHandler(rt.engine, deps.Depositor, a.logger),
		Treasury:   handler.NewTreasuryHandler(rt.treasury, deps.Ledger, decimals, a.logger),
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}

	extras := server.Extras{
		Hub:      rt.hub,
		Limiter:  deps.Limiter,
		Observer: rt.recorder,
		Nonces:   deps.Nonces,
	}
	if a.cfg.Server.Metrics {
		extras.Metrics = rt.recorder.Handler()
	}

	rt.server = server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		WalletWindow: a.cfg.Server.WalletWindow.Duration,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
	}, handlers, extras, a.logger)

	signer, err := rt.engine.Signer(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signer: %w", err)
	}
	treasuryAddr, err := rt.engine.Treasury(ctx)
	if err != nil {
		return nil, fmt.Errorf("read treasury: %w", err)
	}
	a.logger.Info("engine ready",
		slog.String("contract", rt.engine.Identity().Hex()),
		slog.String("admin", rt.engine.Admin().Hex()),
		slog.String("signer", signer.Hex()),
		slog.String("treasury", treasuryAddr.Hex()),
		slog.String("escrow", escrow.Address().Hex()),
		slog.Bool("distributed_locks", deps.Locks != nil),
	)
	return rt, nil
}

// startHTTPServer adds the HTTP server and, when enabled, the WebSocket hub to
// the given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, rt *runtime) {
	if rt.hub != nil {
		g.Go(func() error {
			return rt.hub.Run(ctx)
		})
	}

	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)),
			slog.Bool("websocket", rt.hub != nil),
			slog.Bool("metrics", a.cfg.Server.Metrics),
		)
		return rt.server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return rt.server.Shutdown(shutCtx)
	})
}
