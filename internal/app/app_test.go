package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.AuctionHouse.Authority = solana.NewWallet().PublicKey().String()
	cfg.Server.Port = 0
	return &cfg
}

func TestWireMemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)

	wallet := solana.NewWallet().PublicKey()
	genesis := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(genesis, []byte(
		"time: 1700000000\nwallets:\n  - address: "+wallet.String()+"\n    lamports: 5000000000\n",
	), 0o600))
	cfg.Custodian.GenesisPath = genesis

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Postgres)
	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Signer)
	assert.Empty(t, deps.HealthChecks)

	assert.Equal(t, uint64(5_000_000_000), deps.Ledger.Balance(wallet))
	now, err := deps.Listings.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), now)

	want, err := deps.Gate.Authority(deps.House.Address)
	require.NoError(t, err)
	assert.Equal(t, want, deps.Authority)
}

func TestWireSignsWithOperatorKey(t *testing.T) {
	cfg := memoryConfig(t)
	key := solana.NewWallet().PrivateKey
	cfg.Operator.PrivateKey = key.String()

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Signer)
	assert.Equal(t, key.PublicKey(), deps.Signer.PublicKey())
}

func TestWireRejectsMissingHouse(t *testing.T) {
	cfg := config.Defaults()
	_, _, err := Wire(context.Background(), &cfg, quietLogger())
	assert.Error(t, err)
}

func TestModesRequireBackends(t *testing.T) {
	cfg := memoryConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, quietLogger())
	assert.ErrorContains(t, a.MigrateMode(context.Background(), deps), "postgres")
	assert.ErrorContains(t, a.ArchiveMode(context.Background(), deps), "s3")
}

func TestServerModeStopsOnCancel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Custodian.DevEndpoints = true

	a := New(cfg, quietLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server mode did not stop")
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Mode = "trade"
	a := New(cfg, quietLogger())
	defer a.Close()
	assert.ErrorContains(t, a.Run(context.Background()), "unsupported mode")
}
