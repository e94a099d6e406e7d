package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctioneer/internal/server"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/server/ws"
)

const shutdownTimeout = 15 * time.Second

// ServerMode serves the HTTP API and the WebSocket event stream until ctx is
// cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		AuctionHouse:   deps.House.Address.String(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:      handler.NewStatusHandler(a.cfg.Mode, deps.House, deps.Authority.Address, deps.Listings, time.Now().UTC()),
		Listings:    handler.NewListingHandler(deps.Listings, a.logger),
		Settlements: handler.NewSettlementHandler(deps.Listings, a.logger),
	}
	if a.cfg.Custodian.DevEndpoints {
		a.logger.WarnContext(ctx, "dev endpoints enabled; do not expose this instance publicly")
		handlers.Dev = handler.NewDevHandler(deps.Ledger, deps.Listings, deps.House.Address, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:                    a.cfg.Server.Port,
		CORSOrigins:             a.cfg.Server.CORSOrigins,
		APIKey:                  a.cfg.Server.APIKey,
		RequireWalletSignatures: a.cfg.Server.RequireWalletSignatures,
		SignatureMaxSkew:        a.cfg.Server.SignatureMaxSkew.Duration,
		RequestsPerMinute:       a.cfg.Server.RequestsPerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: server mode: %w", err)
	}
	return nil
}

// MigrateMode applies the embedded schema migrations and exits.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	if deps.Postgres == nil {
		return fmt.Errorf("app: migrate mode requires store.backend = \"postgres\"")
	}
	if err := deps.Postgres.RunMigrations(ctx); err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}

// ArchiveMode exports settlements and audit entries older than the retention
// window to blob storage. With archive.prune_audit set, exported audit rows
// are then deleted from the primary store.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires s3.enabled = true")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	settled, err := deps.Archiver.ArchiveSettlements(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive settlements: %w", err)
	}
	audited, err := deps.Archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive audit: %w", err)
	}

	var pruned int64
	if a.cfg.Archive.PruneAudit && audited > 0 {
		if pruned, err = deps.AuditStore.Prune(ctx, cutoff); err != nil {
			return fmt.Errorf("app: prune audit: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("settlements", settled),
		slog.Int64("audit_entries", audited),
		slog.Int64("audit_pruned", pruned),
	)
	return nil
}
