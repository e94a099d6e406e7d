package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/auctioneer"
	"github.com/alanyoungcy/auctioneer/internal/authority"
	s3blob "github.com/alanyoungcy/auctioneer/internal/blob/s3"
	"github.com/alanyoungcy/auctioneer/internal/cache/redis"
	"github.com/alanyoungcy/auctioneer/internal/config"
	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/custodian/ledger"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/notify"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/service"
	"github.com/alanyoungcy/auctioneer/internal/store/memory"
	"github.com/alanyoungcy/auctioneer/internal/store/postgres"
)

// AuditPruner deletes audit entries older than a cutoff.
type AuditPruner interface {
	domain.AuditStore
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Gate      *authority.Gate
	House     domain.AuctionHouse
	Authority domain.Authority
	Ledger    *ledger.Ledger

	// Stores
	ListingStore    domain.ListingStore
	SettlementStore domain.SettlementStore
	AuditStore      AuditPruner
	Postgres        *postgres.Client

	// Coordination
	ListingCache domain.ListingCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	Redis        *redis.Client

	// Blob storage
	S3       *s3blob.Client
	Archiver domain.Archiver
	Receipts *s3blob.ReceiptIndex

	Signer   *crypto.ReceiptSigner
	Notifier *notify.Notifier

	Engine   *auctioneer.Engine
	Listings *service.ListingService

	// HealthChecks ping every external dependency that was wired.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: map[string]handler.HealthCheck{}}

	// --- Authority gate and auction house ---
	gate, err := cfg.Programs.Gate()
	if err != nil {
		return fail(fmt.Errorf("wire: programs: %w", err))
	}
	house, err := cfg.AuctionHouse.Resolve(gate)
	if err != nil {
		return fail(fmt.Errorf("wire: auction house: %w", err))
	}
	deps.Gate, deps.House = gate, house

	// --- Escrow custodian ---
	lg := ledger.New(gate, logger)
	if deps.Authority, err = lg.RegisterDelegate(house.Address); err != nil {
		return fail(fmt.Errorf("wire: register delegate: %w", err))
	}
	if cfg.Custodian.GenesisPath != "" {
		g, err := ledger.LoadGenesisFile(cfg.Custodian.GenesisPath)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		if err := lg.ApplyGenesis(g); err != nil {
			return fail(fmt.Errorf("wire: apply genesis: %w", err))
		}
	}
	if cfg.Custodian.ClockRPCEndpoint != "" {
		clock := ledger.NewRPCClock(cfg.Custodian.ClockRPCEndpoint)
		lg.UseTimeSource(clock)
		deps.HealthChecks["clock"] = func(ctx context.Context) error {
			_, err := clock.Now(ctx)
			return err
		}
	}
	deps.Ledger = lg

	// --- Stores ---
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations && cfg.Mode != "migrate" {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Postgres = pgClient
		deps.ListingStore = postgres.NewListingStore(pool)
		deps.SettlementStore = postgres.NewSettlementStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pool.Ping
	default:
		deps.ListingStore = memory.NewListingStore()
		deps.SettlementStore = memory.NewSettlementStore()
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Redis, or in-process coordination for a single replica ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.ListingCache = redis.NewListingCache(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, logger)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Prefix:         cfg.S3.Prefix,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.S3 = s3Client
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.SettlementStore, deps.AuditStore)
		deps.Receipts = s3blob.NewReceiptIndex(s3blob.NewReader(s3Client))
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Operator key ---
	keyCfg := crypto.KeyConfig{
		RawPrivateKey:    cfg.Operator.PrivateKey,
		KeypairPath:      cfg.Operator.KeypairPath,
		EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
		KeyPassword:      cfg.Operator.KeyPassword,
	}
	if keyCfg.Configured() {
		key, err := crypto.LoadKey(keyCfg)
		if err != nil {
			return fail(fmt.Errorf("wire: operator key: %w", err))
		}
		deps.Signer = crypto.NewReceiptSigner(key)
		logger.InfoContext(ctx, "receipts will be signed",
			slog.String("operator", deps.Signer.PublicKey().String()),
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Engine and service ---
	deps.Engine = auctioneer.NewEngine(gate, lg, deps.ListingStore, house, logger)
	deps.Listings = service.NewListingService(
		deps.Engine, deps.ListingStore, deps.SettlementStore,
		deps.LockManager, deps.RateLimiter, deps.SignalBus, deps.AuditStore,
		service.Limits{
			BidsPerWindow: cfg.Limits.BidsPerWindow,
			BidWindow:     cfg.Limits.BidWindow.Duration,
			LockTTL:       cfg.Limits.LockTTL.Duration,
		},
		logger,
	)
	if deps.ListingCache != nil {
		deps.Listings.WithCache(deps.ListingCache)
	}
	if deps.Archiver != nil {
		deps.Listings.WithArchiver(deps.Archiver).WithReceiptLookup(deps.Receipts)
	}
	if deps.Signer != nil {
		deps.Listings.WithSigner(deps.Signer)
	}
	if len(senders) > 0 {
		deps.Listings.WithNotifier(deps.Notifier)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("auction_house", house.Address.String()),
		slog.String("authority", deps.Authority.Address.String()),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
		slog.Bool("operator_key", deps.Signer != nil),
	)
	return deps, cleanup, nil
}
