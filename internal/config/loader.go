package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults, then applies .env and
// AUCTIONEER_* overrides. An empty path skips the file. The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose AUCTIONEER_* variable is set and
// non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Auction house ──
	setStr(&cfg.AuctionHouse.Address, "AUCTIONEER_AUCTION_HOUSE_ADDRESS")
	setStr(&cfg.AuctionHouse.Authority, "AUCTIONEER_AUCTION_HOUSE_AUTHORITY")
	setStr(&cfg.AuctionHouse.TreasuryMint, "AUCTIONEER_AUCTION_HOUSE_TREASURY_MINT")
	setStr(&cfg.AuctionHouse.FeeAccount, "AUCTIONEER_AUCTION_HOUSE_FEE_ACCOUNT")
	setStr(&cfg.AuctionHouse.TreasuryAccount, "AUCTIONEER_AUCTION_HOUSE_TREASURY_ACCOUNT")
	setUint16(&cfg.AuctionHouse.SellerFeeBasisPoints, "AUCTIONEER_AUCTION_HOUSE_SELLER_FEE_BASIS_POINTS")

	// ── Programs ──
	setStr(&cfg.Programs.Auctioneer, "AUCTIONEER_PROGRAMS_AUCTIONEER")
	setStr(&cfg.Programs.AuctionHouse, "AUCTIONEER_PROGRAMS_AUCTION_HOUSE")

	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "AUCTIONEER_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.KeypairPath, "AUCTIONEER_OPERATOR_KEYPAIR_PATH")
	setStr(&cfg.Operator.EncryptedKeyPath, "AUCTIONEER_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "AUCTIONEER_OPERATOR_KEY_PASSWORD")

	// ── Store ──
	setStr(&cfg.Store.Backend, "AUCTIONEER_STORE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AUCTIONEER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AUCTIONEER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONEER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONEER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONEER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONEER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONEER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTIONEER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTIONEER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONEER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AUCTIONEER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AUCTIONEER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONEER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONEER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONEER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONEER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONEER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "AUCTIONEER_REDIS_NAMESPACE")
	setDuration(&cfg.Redis.CacheTTL, "AUCTIONEER_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AUCTIONEER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AUCTIONEER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIONEER_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIONEER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "AUCTIONEER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "AUCTIONEER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIONEER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIONEER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIONEER_S3_FORCE_PATH_STYLE")

	// ── Custodian ──
	setStr(&cfg.Custodian.GenesisPath, "AUCTIONEER_CUSTODIAN_GENESIS_PATH")
	setStr(&cfg.Custodian.ClockRPCEndpoint, "AUCTIONEER_CUSTODIAN_CLOCK_RPC_ENDPOINT")
	setBool(&cfg.Custodian.DevEndpoints, "AUCTIONEER_CUSTODIAN_DEV_ENDPOINTS")

	// ── Limits / archive ──
	setInt(&cfg.Limits.BidsPerWindow, "AUCTIONEER_LIMITS_BIDS_PER_WINDOW")
	setDuration(&cfg.Limits.BidWindow, "AUCTIONEER_LIMITS_BID_WINDOW")
	setDuration(&cfg.Limits.LockTTL, "AUCTIONEER_LIMITS_LOCK_TTL")
	setInt(&cfg.Archive.RetentionDays, "AUCTIONEER_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.PruneAudit, "AUCTIONEER_ARCHIVE_PRUNE_AUDIT")

	// ── Server ──
	setInt(&cfg.Server.Port, "AUCTIONEER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONEER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AUCTIONEER_SERVER_API_KEY")
	setBool(&cfg.Server.RequireWalletSignatures, "AUCTIONEER_SERVER_REQUIRE_WALLET_SIGNATURES")
	setDuration(&cfg.Server.SignatureMaxSkew, "AUCTIONEER_SERVER_SIGNATURE_MAX_SKEW")
	setInt(&cfg.Server.RequestsPerMinute, "AUCTIONEER_SERVER_REQUESTS_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIONEER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONEER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIONEER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIONEER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONEER_MODE")
	setStr(&cfg.LogLevel, "AUCTIONEER_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint16(dst *uint16, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			*dst = uint16(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
