// Package config defines the auctioneer service configuration and its
// validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONEER_* environment variables.
type Config struct {
	AuctionHouse AuctionHouseConfig `toml:"auction_house"`
	Programs     ProgramsConfig     `toml:"programs"`
	Operator     OperatorConfig     `toml:"operator"`
	Store        StoreConfig        `toml:"store"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Custodian    CustodianConfig    `toml:"custodian"`
	Limits       LimitsConfig       `toml:"limits"`
	Archive      ArchiveConfig      `toml:"archive"`
	Server       ServerConfig       `toml:"server"`
	Notify       NotifyConfig       `toml:"notify"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// AuctionHouseConfig identifies the auction house that delegates to this
// service. Address, fee_account and treasury_account are derived when empty.
type AuctionHouseConfig struct {
	Address              string `toml:"address"`
	Authority            string `toml:"authority"`
	TreasuryMint         string `toml:"treasury_mint"`
	FeeAccount           string `toml:"fee_account"`
	TreasuryAccount      string `toml:"treasury_account"`
	SellerFeeBasisPoints uint16 `toml:"seller_fee_basis_points"`
}

// ProgramsConfig overrides the on-chain program ids. Empty means default.
type ProgramsConfig struct {
	Auctioneer   string `toml:"auctioneer"`
	AuctionHouse string `toml:"auction_house"`
}

// OperatorConfig locates the key that signs settlement receipts. All empty
// leaves receipts unsigned.
type OperatorConfig struct {
	PrivateKey       string `toml:"private_key"`
	KeypairPath      string `toml:"keypair_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// StoreConfig selects the listing store backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // "memory" or "postgres"
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled the process
// uses in-memory locks, rate limits and event bus, which is only correct for
// a single replica.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	Namespace  string   `toml:"namespace"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CustodianConfig configures the in-process escrow ledger.
type CustodianConfig struct {
	// GenesisPath is a YAML file of initial balances and assets.
	GenesisPath string `toml:"genesis_path"`
	// ClockRPCEndpoint makes the ledger read cluster time from a Solana RPC
	// node instead of its own logical clock.
	ClockRPCEndpoint string `toml:"clock_rpc_endpoint"`
	// DevEndpoints exposes airdrop, mint, clock and withdraw routes.
	DevEndpoints bool `toml:"dev_endpoints"`
}

// LimitsConfig bounds per-caller activity.
type LimitsConfig struct {
	BidsPerWindow int      `toml:"bids_per_window"`
	BidWindow     duration `toml:"bid_window"`
	LockTTL       duration `toml:"lock_ttl"`
}

// ArchiveConfig drives the archive mode.
type ArchiveConfig struct {
	RetentionDays int  `toml:"retention_days"`
	PruneAudit    bool `toml:"prune_audit"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                    int      `toml:"port"`
	CORSOrigins             []string `toml:"cors_origins"`
	APIKey                  string   `toml:"api_key"`
	RequireWalletSignatures bool     `toml:"require_wallet_signatures"`
	SignatureMaxSkew        duration `toml:"signature_max_skew"`
	RequestsPerMinute       int      `toml:"requests_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config for a single-replica development instance.
func Defaults() Config {
	return Config{
		AuctionHouse: AuctionHouseConfig{
			TreasuryMint:         solana.SolMint.String(),
			SellerFeeBasisPoints: 200,
		},
		Store: StoreConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctioneer",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Namespace:  "auctioneer",
			CacheTTL:   duration{30 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctioneer",
			ForcePathStyle: true,
		},
		Limits: LimitsConfig{
			BidsPerWindow: 10,
			BidWindow:     duration{time.Minute},
			LockTTL:       duration{10 * time.Second},
		},
		Archive: ArchiveConfig{RetentionDays: 90},
		Server: ServerConfig{
			Port:              8000,
			CORSOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
			SignatureMaxSkew:  duration{time.Minute},
			RequestsPerMinute: 600,
		},
		Notify: NotifyConfig{
			Events: []string{"listing_created", "listing_settled"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"migrate": true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, migrate, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Auction house
	if c.AuctionHouse.Address == "" && c.AuctionHouse.Authority == "" {
		errs = append(errs, "auction_house: address or authority must be set")
	}
	for name, v := range map[string]string{
		"auction_house.address":          c.AuctionHouse.Address,
		"auction_house.authority":        c.AuctionHouse.Authority,
		"auction_house.treasury_mint":    c.AuctionHouse.TreasuryMint,
		"auction_house.fee_account":      c.AuctionHouse.FeeAccount,
		"auction_house.treasury_account": c.AuctionHouse.TreasuryAccount,
		"programs.auctioneer":            c.Programs.Auctioneer,
		"programs.auction_house":         c.Programs.AuctionHouse,
	} {
		if v == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid public key %q", name, v))
		}
	}
	if c.AuctionHouse.TreasuryMint == "" {
		errs = append(errs, "auction_house: treasury_mint must not be empty")
	}
	if c.AuctionHouse.SellerFeeBasisPoints > 10000 {
		errs = append(errs, fmt.Sprintf("auction_house: seller_fee_basis_points must be <= 10000, got %d", c.AuctionHouse.SellerFeeBasisPoints))
	}

	// Operator
	if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
		errs = append(errs, "operator: key_password is required when encrypted_key_path is set")
	}

	// Store
	switch c.Store.Backend {
	case "memory":
		if mode == "migrate" {
			errs = append(errs, "store: mode migrate requires backend postgres")
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, postgres)", c.Store.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled || mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if mode == "archive" && !c.S3.Enabled {
		errs = append(errs, "s3: mode archive requires s3.enabled")
	}
	if mode == "archive" && c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive: retention_days must be >= 1")
	}

	// Limits
	if c.Limits.BidsPerWindow < 0 {
		errs = append(errs, "limits: bids_per_window must be >= 0")
	}
	if c.Limits.BidsPerWindow > 0 && c.Limits.BidWindow.Duration <= 0 {
		errs = append(errs, "limits: bid_window must be positive")
	}
	if c.Limits.LockTTL.Duration <= 0 {
		errs = append(errs, "limits: lock_ttl must be positive")
	}

	// Server
	if mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RequireWalletSignatures && c.Server.SignatureMaxSkew.Duration <= 0 {
			errs = append(errs, "server: signature_max_skew must be positive")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
