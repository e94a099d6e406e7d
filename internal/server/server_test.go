package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/auctioneer"
	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/custodian/ledger"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/server/middleware"
	"github.com/alanyoungcy/auctioneer/internal/service"
	"github.com/alanyoungcy/auctioneer/internal/store/memory"
)

const (
	startTime = int64(1_700_000_000)
	oneSOL    = uint64(1_000_000_000)
)

type testEnv struct {
	t      *testing.T
	h      http.Handler
	ledger *ledger.Ledger
	house  domain.AuctionHouse
	seller solana.PrivateKey
	asset  domain.AssetRef
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := authority.NewGate(authority.DefaultProgramID, authority.DefaultAuctionHouseProgramID)
	lg := ledger.New(gate, logger)
	lg.SetTime(startTime)

	house := domain.AuctionHouse{
		Address:              solana.NewWallet().PublicKey(),
		ProgramID:            authority.DefaultAuctionHouseProgramID,
		Authority:            solana.NewWallet().PublicKey(),
		TreasuryMint:         solana.SolMint,
		FeeAccount:           solana.NewWallet().PublicKey(),
		TreasuryAccount:      solana.NewWallet().PublicKey(),
		SellerFeeBasisPoints: 250,
	}
	auth, err := lg.RegisterDelegate(house.Address)
	require.NoError(t, err)

	seller := solana.NewWallet().PrivateKey
	md := domain.AssetMetadata{Mint: solana.NewWallet().PublicKey()}
	ata, err := lg.MintAsset(seller.PublicKey(), md, 1)
	require.NoError(t, err)

	listings := memory.NewListingStore()
	limiter := memory.NewRateLimiter()
	engine := auctioneer.NewEngine(gate, lg, listings, house, logger)
	svc := service.NewListingService(engine, listings, memory.NewSettlementStore(), memory.NewLockManager(),
		limiter, memory.NewSignalBus(), memory.NewAuditStore(), service.Limits{}, logger)

	srv := NewServer(cfg, Handlers{
		Health:      handler.NewHealthHandler(nil, logger),
		Status:      handler.NewStatusHandler("server", house, auth.Address, svc, time.Now()),
		Listings:    handler.NewListingHandler(svc, logger),
		Settlements: handler.NewSettlementHandler(svc, logger),
		Dev:         handler.NewDevHandler(lg, svc, house.Address, logger),
	}, nil, limiter, logger)

	return &testEnv{
		t:      t,
		h:      srv.Handler(),
		ledger: lg,
		house:  house,
		seller: seller,
		asset: domain.AssetRef{
			TokenMint:    md.Mint,
			TokenAccount: ata,
			TreasuryMint: solana.SolMint,
			TokenSize:    1,
		},
	}
}

func (e *testEnv) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf []byte
	if body != nil {
		var err error
		buf, err = json.Marshal(body)
		require.NoError(e.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signed(key solana.PrivateKey, method, path string, body any) http.Header {
	e.t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(e.t, err)
	ts, sig, err := crypto.SignRequest(key, time.Now(), method, path, buf)
	require.NoError(e.t, err)
	return http.Header{
		middleware.HeaderWallet:          {key.PublicKey().String()},
		middleware.HeaderWalletTimestamp: {ts},
		middleware.HeaderWalletSignature: {sig},
	}
}

func (e *testEnv) sellBody() map[string]any {
	return map[string]any{
		"seller":        e.seller.PublicKey(),
		"token_mint":    e.asset.TokenMint,
		"token_account": e.asset.TokenAccount,
		"token_size":    1,
		"start_time":    startTime,
		"end_time":      startTime + 60,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type listingResp struct {
	Address    solana.PublicKey `json:"address"`
	Phase      string           `json:"phase"`
	EndTime    int64            `json:"end_time"`
	HighestBid *struct {
		TradeRecord solana.PublicKey `json:"trade_record"`
		Price       uint64           `json:"price"`
		PriceSOL    string           `json:"price_sol"`
	} `json:"highest_bid"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestAuctionOverHTTP(t *testing.T) {
	e := newTestEnv(t, Config{})

	rec := e.do(http.MethodPost, "/api/listings", e.sellBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sold := decode[struct {
		Listing listingResp `json:"listing"`
	}](t, rec)
	listing := sold.Listing.Address
	assert.Equal(t, "active", sold.Listing.Phase)

	rec = e.do(http.MethodGet, "/api/listings", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Listings []listingResp `json:"listings"`
	}](t, rec)
	require.Len(t, list.Listings, 1)

	buyer := solana.NewWallet().PublicKey()
	rec = e.do(http.MethodPost, "/api/dev/airdrop", map[string]any{"wallet": buyer, "amount": "10"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/listings/"+listing.String()+"/bids", map[string]any{"buyer": buyer, "price": "1.5"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bid := decode[struct {
		TradeRecord domain.TradeRecord `json:"trade_record"`
		Listing     listingResp        `json:"listing"`
	}](t, rec)
	require.NotNil(t, bid.Listing.HighestBid)
	assert.Equal(t, 1500*oneSOL/1000, bid.Listing.HighestBid.Price)
	assert.Equal(t, "1.5", bid.Listing.HighestBid.PriceSOL)

	rec = e.do(http.MethodPost, "/api/listings/"+listing.String()+"/execute", map[string]any{
		"trade_record": bid.TradeRecord.Address,
		"buyer_price":  bid.TradeRecord.Price,
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "auction_active", decode[errResp](t, rec).Code)

	rec = e.do(http.MethodPost, "/api/dev/clock", map[string]any{"advance": 61}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/listings/"+listing.String()+"/execute", map[string]any{
		"seller":       e.seller.PublicKey(),
		"trade_record": bid.TradeRecord.Address,
		"buyer_price":  bid.TradeRecord.Price,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[struct {
		Buyer          solana.PublicKey `json:"buyer"`
		MarketplaceFee uint64           `json:"marketplace_fee"`
		PriceSOL       string           `json:"price_sol"`
	}](t, rec)
	assert.Equal(t, buyer, st.Buyer)
	assert.Equal(t, bid.TradeRecord.Price*250/10000, st.MarketplaceFee)
	assert.Equal(t, "1.5", st.PriceSOL)

	rec = e.do(http.MethodGet, "/api/listings/"+listing.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errResp](t, rec).Code)

	rec = e.do(http.MethodGet, "/api/listings/"+listing.String()+"/settlement", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/settlements", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settlements := decode[struct {
		Settlements []json.RawMessage `json:"settlements"`
	}](t, rec)
	assert.Len(t, settlements.Settlements, 1)

	rec = e.do(http.MethodGet, "/api/events", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[struct {
		Events []struct {
			Event domain.ListingEvent `json:"event"`
		} `json:"events"`
		LastID string `json:"last_id"`
	}](t, rec)
	require.Len(t, events.Events, 3)
	assert.Equal(t, domain.EventListingSettled, events.Events[2].Event.Type)
	assert.NotEmpty(t, events.LastID)
}

func TestErrorCodes(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(http.MethodPost, "/api/listings", e.sellBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	listing := decode[struct {
		Listing listingResp `json:"listing"`
	}](t, rec).Listing.Address.String()

	rec = e.do(http.MethodPost, "/api/listings", e.sellBody(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decode[errResp](t, rec).Code)

	bad := e.sellBody()
	bad["end_time"] = startTime
	rec = e.do(http.MethodPost, "/api/listings", bad, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	poor := solana.NewWallet().PublicKey()
	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": poor, "price": oneSOL}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_funds", decode[errResp](t, rec).Code)

	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": e.seller.PublicKey(), "price": oneSOL}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rich := solana.NewWallet().PublicKey()
	e.ledger.Airdrop(rich, 10*oneSOL)
	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": rich, "price": 2 * oneSOL}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": rich, "price": oneSOL}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "bid_too_low", decode[errResp](t, rec).Code)

	rec = e.do(http.MethodGet, "/api/listings/not-a-key", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": rich, "bogus": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKey(t *testing.T) {
	e := newTestEnv(t, Config{APIKey: "secret"})

	rec := e.do(http.MethodGet, "/api/listings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodGet, "/api/listings", nil, http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/listings", nil, http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletSignatures(t *testing.T) {
	e := newTestEnv(t, Config{RequireWalletSignatures: true, SignatureMaxSkew: time.Minute})
	body := e.sellBody()

	rec := e.do(http.MethodPost, "/api/listings", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := solana.NewWallet().PrivateKey
	rec = e.do(http.MethodPost, "/api/listings", body, e.signed(other, http.MethodPost, "/api/listings", body))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tampered := e.signed(e.seller, http.MethodPost, "/api/listings", body)
	body["end_time"] = startTime + 120
	rec = e.do(http.MethodPost, "/api/listings", body, tampered)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, "/api/listings", body, e.signed(e.seller, http.MethodPost, "/api/listings", body))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/listings", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, Config{RequestsPerMinute: 3})
	for i := 0; i < 3; i++ {
		rec := e.do(http.MethodGet, "/api/listings", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("request %d", i))
	}
	rec := e.do(http.MethodGet, "/api/listings", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[errResp](t, rec).Code)
}

func TestReclaimAfterWithdrawal(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(http.MethodPost, "/api/listings", e.sellBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sold := decode[struct {
		Listing     listingResp        `json:"listing"`
		TradeRecord domain.TradeRecord `json:"trade_record"`
	}](t, rec)
	listing := sold.Listing.Address.String()

	buyer := solana.NewWallet().PublicKey()
	e.ledger.Airdrop(buyer, 5*oneSOL)
	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/bids", map[string]any{"buyer": buyer, "price": 2 * oneSOL}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bid := decode[struct {
		TradeRecord domain.TradeRecord `json:"trade_record"`
	}](t, rec)

	rec = e.do(http.MethodPost, "/api/dev/reclaim", map[string]any{"wallet": buyer, "trade_record": bid.TradeRecord.Address}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, "/api/listings/"+listing+"/cancel", map[string]any{
		"wallet":           e.seller.PublicKey(),
		"trade_record":     sold.TradeRecord.Address,
		"withdraw_listing": true,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[struct {
		Closed bool `json:"closed"`
	}](t, rec).Closed)

	rec = e.do(http.MethodPost, "/api/dev/reclaim", map[string]any{"wallet": buyer, "trade_record": bid.TradeRecord.Address}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5*oneSOL, e.ledger.Balance(buyer))
	assert.Zero(t, e.ledger.Escrow(e.house.Address, buyer))
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(http.MethodGet, "/api/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, e.house.Address.String(), body["auction_house"])
	assert.EqualValues(t, startTime, body["clock"])
}
