package auctioneer

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/custodian/ledger"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/store/memory"
)

const (
	startTime = int64(1_700_000_000)
	oneSOL    = uint64(1_000_000_000)
)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type fixture struct {
	t        tb
	ctx      context.Context
	engine   *Engine
	ledger   *ledger.Ledger
	listings *memory.ListingStore
	house    domain.AuctionHouse
	seller   solana.PublicKey
	asset    domain.AssetRef
	meta     domain.AssetMetadata
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t tb) *fixture {
	t.Helper()
	return newFixtureWithMetadata(t, domain.AssetMetadata{
		SellerFeeBasisPoints: 500,
		Creators: []domain.Creator{
			{Address: solana.NewWallet().PublicKey(), Share: 25},
			{Address: solana.NewWallet().PublicKey(), Share: 75},
		},
	})
}

func newFixtureWithMetadata(t tb, md domain.AssetMetadata) *fixture {
	t.Helper()
	gate := authority.NewGate(authority.DefaultProgramID, authority.DefaultAuctionHouseProgramID)
	lg := ledger.New(gate, discardLogger())
	lg.SetTime(startTime)

	house := domain.AuctionHouse{
		Address:              solana.NewWallet().PublicKey(),
		ProgramID:            authority.DefaultAuctionHouseProgramID,
		Authority:            solana.NewWallet().PublicKey(),
		TreasuryMint:         solana.SolMint,
		FeeAccount:           solana.NewWallet().PublicKey(),
		TreasuryAccount:      solana.NewWallet().PublicKey(),
		SellerFeeBasisPoints: 200,
	}
	_, err := lg.RegisterDelegate(house.Address)
	require.NoError(t, err)

	seller := solana.NewWallet().PublicKey()
	md.Mint = solana.NewWallet().PublicKey()
	ata, err := lg.MintAsset(seller, md, 1)
	require.NoError(t, err)

	listings := memory.NewListingStore()
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		engine:   NewEngine(gate, lg, listings, house, discardLogger()),
		ledger:   lg,
		listings: listings,
		house:    house,
		seller:   seller,
		asset: domain.AssetRef{
			TokenMint:    md.Mint,
			TokenAccount: ata,
			TreasuryMint: solana.SolMint,
			TokenSize:    1,
		},
		meta: md,
	}
}

func (f *fixture) sell(mutate ...func(*SellRequest)) SellResult {
	f.t.Helper()
	req := SellRequest{
		Seller:    f.seller,
		Asset:     f.asset,
		StartTime: startTime,
		EndTime:   startTime + 60,
	}
	for _, m := range mutate {
		m(&req)
	}
	res, err := f.engine.Sell(f.ctx, req)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) buyer(lamports uint64) solana.PublicKey {
	f.t.Helper()
	b := solana.NewWallet().PublicKey()
	f.ledger.Airdrop(b, lamports)
	return b
}

func (f *fixture) bid(listing, buyer solana.PublicKey, price uint64) (BidResult, error) {
	return f.engine.Bid(f.ctx, BidRequest{Listing: listing, Buyer: buyer, Price: price})
}

func (f *fixture) cancelBid(listing, buyer, tr solana.PublicKey, price uint64) error {
	_, err := f.engine.Cancel(f.ctx, CancelRequest{Listing: listing, Wallet: buyer, TradeRecord: tr, BuyerPrice: price})
	return err
}

func (f *fixture) custody() solana.PublicKey {
	pas, _, err := f.engine.Gate().ProgramAsSigner()
	require.NoError(f.t, err)
	return pas
}

func (f *fixture) requireClosed(listing solana.PublicKey) {
	f.t.Helper()
	_, err := f.listings.Get(f.ctx, listing)
	require.ErrorIs(f.t, err, domain.ErrNotFound)
}

func TestSellCreatesListingAndTakesCustody(t *testing.T) {
	f := newFixture(t)
	res := f.sell()

	got, err := f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
	assert.Nil(t, got.HighestBid)
	assert.Equal(t, f.seller, got.Seller)
	assert.False(t, got.AllowHighBidCancel)

	assert.Zero(t, f.ledger.TokenBalance(f.seller, f.asset.TokenMint))
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(f.custody(), f.asset.TokenMint))
	assert.True(t, res.TradeRecord.IsSellerClaim())
}

func TestSellRejectsDuplicateListing(t *testing.T) {
	f := newFixture(t)
	f.sell()
	_, err := f.engine.Sell(f.ctx, SellRequest{Seller: f.seller, Asset: f.asset, StartTime: startTime, EndTime: startTime + 60})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSellValidatesParameters(t *testing.T) {
	f := newFixture(t)
	base := SellRequest{Seller: f.seller, Asset: f.asset, StartTime: startTime, EndTime: startTime + 60}

	req := base
	req.EndTime = req.StartTime
	_, err := f.engine.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	req = base
	req.TimeExtPeriod = u32(10)
	_, err = f.engine.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidExtension)

	req = base
	req.TimeExtPeriod, req.TimeExtDelta = u32(10), u32(0)
	_, err = f.engine.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidExtension)

	req = base
	req.Asset.TokenSize = 0
	_, err = f.engine.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidTokenSize)

	// Nothing moved.
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(f.seller, f.asset.TokenMint))
}

func TestSellWithPastWindowIsAllowed(t *testing.T) {
	f := newFixture(t)
	res := f.sell(func(r *SellRequest) {
		r.StartTime = startTime - 600
		r.EndTime = startTime - 300
	})
	_, err := f.bid(res.Listing.Address, f.buyer(oneSOL), oneSOL)
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
}

func TestSellRollsBackWhenSellerLacksAsset(t *testing.T) {
	f := newFixture(t)
	other := solana.NewWallet().PublicKey()
	_, err := f.engine.Sell(f.ctx, SellRequest{Seller: other, Asset: f.asset, StartTime: startTime, EndTime: startTime + 60})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	sellerRecord, _, err := f.engine.Gate().TradeStateAddress(other, f.house.Address, f.asset, domain.SellerSentinelPrice)
	require.NoError(t, err)
	_, err = f.ledger.TradeRecord(f.ctx, sellerRecord)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// A seller cancel with no bids returns the token and closes the listing.
func TestSellerCancelDestroysListing(t *testing.T) {
	f := newFixture(t)
	res := f.sell()

	cr, err := f.engine.Cancel(f.ctx, CancelRequest{
		Listing:     res.Listing.Address,
		Wallet:      f.seller,
		TradeRecord: res.TradeRecord.Address,
		BuyerPrice:  domain.SellerSentinelPrice,
	})
	require.NoError(t, err)
	assert.True(t, cr.Closed)
	f.requireClosed(res.Listing.Address)
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(f.seller, f.asset.TokenMint))

	_, err = f.bid(res.Listing.Address, f.buyer(oneSOL), oneSOL)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSellerCancelAllowedWhileHighestBidStands(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	_, err := f.bid(res.Listing.Address, f.buyer(oneSOL), oneSOL)
	require.NoError(t, err)

	_, err = f.engine.Cancel(f.ctx, CancelRequest{
		Listing:     res.Listing.Address,
		Wallet:      f.seller,
		TradeRecord: res.TradeRecord.Address,
		BuyerPrice:  domain.SellerSentinelPrice,
	})
	require.NoError(t, err)
	f.requireClosed(res.Listing.Address)
}

func TestSellerCancelRequiresSeller(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	_, err := f.engine.Cancel(f.ctx, CancelRequest{
		Listing:     res.Listing.Address,
		Wallet:      solana.NewWallet().PublicKey(),
		TradeRecord: res.TradeRecord.Address,
		BuyerPrice:  domain.SellerSentinelPrice,
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
}

// The standing highest bid stays locked until the window ends.
func TestHighestBidCannotBeCancelledWhileActive(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(2 * oneSOL)

	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	assert.Equal(t, oneSOL, f.ledger.Escrow(f.house.Address, buyer))

	err = f.cancelBid(res.Listing.Address, buyer, br.TradeRecord.Address, oneSOL)
	assert.ErrorIs(t, err, domain.ErrCannotCancelHighestBid)

	got, err := f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
	require.NotNil(t, got.HighestBid)
	assert.Equal(t, br.TradeRecord.Address, got.HighestBid.TradeRecord)
	assert.Equal(t, oneSOL, f.ledger.Escrow(f.house.Address, buyer))
}

func TestHighestBidCancelWhenAllowed(t *testing.T) {
	f := newFixture(t)
	res := f.sell(func(r *SellRequest) { r.AllowHighBidCancel = true })
	buyer := f.buyer(oneSOL)

	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	require.NoError(t, f.cancelBid(res.Listing.Address, buyer, br.TradeRecord.Address, oneSOL))

	assert.Equal(t, oneSOL, f.ledger.Balance(buyer))
	assert.Zero(t, f.ledger.Escrow(f.house.Address, buyer))
	_, err = f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
}

// An outbid buyer can withdraw at once; the winner only after the end.
func TestOutbidBuyerCanCancel(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	a, b := f.buyer(oneSOL), f.buyer(2*oneSOL)

	ra, err := f.bid(res.Listing.Address, a, oneSOL)
	require.NoError(t, err)
	rb, err := f.bid(res.Listing.Address, b, oneSOL+1)
	require.NoError(t, err)

	require.NoError(t, f.cancelBid(res.Listing.Address, a, ra.TradeRecord.Address, oneSOL))
	assert.Equal(t, oneSOL, f.ledger.Balance(a))

	err = f.cancelBid(res.Listing.Address, b, rb.TradeRecord.Address, oneSOL+1)
	assert.ErrorIs(t, err, domain.ErrCannotCancelHighestBid)

	f.ledger.Advance(61)
	require.NoError(t, f.cancelBid(res.Listing.Address, b, rb.TradeRecord.Address, oneSOL+1))

	_, err = f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err, "buyer cancel never closes the listing")
}

func TestRebidOnRelistReusesLockedEscrow(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(oneSOL)

	first, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	_, err = f.engine.Cancel(f.ctx, CancelRequest{
		Listing:     res.Listing.Address,
		Wallet:      f.seller,
		TradeRecord: res.TradeRecord.Address,
		BuyerPrice:  domain.SellerSentinelPrice,
	})
	require.NoError(t, err)
	f.requireClosed(res.Listing.Address)

	// The buyer's record survives the seller cancel with its escrow.
	relist := f.sell(func(r *SellRequest) { r.AllowHighBidCancel = true })
	again, err := f.bid(relist.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	assert.Equal(t, first.TradeRecord.Address, again.TradeRecord.Address)
	assert.Zero(t, f.ledger.Balance(buyer))
	assert.Equal(t, oneSOL, f.ledger.Escrow(f.house.Address, buyer))

	require.NoError(t, f.cancelBid(relist.Listing.Address, buyer, again.TradeRecord.Address, oneSOL))
	assert.Equal(t, oneSOL, f.ledger.Balance(buyer))
	assert.Zero(t, f.ledger.Escrow(f.house.Address, buyer))
	_, err = f.ledger.TradeRecord(f.ctx, again.TradeRecord.Address)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelRejectsForeignTradeRecord(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	a, b := f.buyer(oneSOL), f.buyer(2*oneSOL)

	ra, err := f.bid(res.Listing.Address, a, oneSOL)
	require.NoError(t, err)
	_, err = f.bid(res.Listing.Address, b, 2*oneSOL)
	require.NoError(t, err)

	err = f.cancelBid(res.Listing.Address, b, ra.TradeRecord.Address, oneSOL)
	assert.ErrorIs(t, err, domain.ErrTradeRecordMismatch)

	err = f.cancelBid(res.Listing.Address, a, ra.TradeRecord.Address, oneSOL+5)
	assert.ErrorIs(t, err, domain.ErrTradeRecordMismatch)
}

func TestBidRequiresActiveWindow(t *testing.T) {
	f := newFixture(t)
	res := f.sell(func(r *SellRequest) {
		r.StartTime = startTime + 10
		r.EndTime = startTime + 20
	})
	buyer := f.buyer(oneSOL)

	_, err := f.bid(res.Listing.Address, buyer, 1)
	assert.ErrorIs(t, err, domain.ErrAuctionNotStarted)

	f.ledger.SetTime(startTime + 20)
	_, err = f.bid(res.Listing.Address, buyer, 1)
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
	assert.Equal(t, oneSOL, f.ledger.Balance(buyer))
}

func TestBidMustImproveByIncrement(t *testing.T) {
	f := newFixture(t)
	inc := uint64(100)
	res := f.sell(func(r *SellRequest) { r.MinBidIncrement = &inc })
	buyer := f.buyer(10 * oneSOL)

	_, err := f.bid(res.Listing.Address, buyer, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.bid(res.Listing.Address, buyer, 1000)
	require.NoError(t, err)

	_, err = f.bid(res.Listing.Address, buyer, 1000)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	_, err = f.bid(res.Listing.Address, buyer, 1099)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	_, err = f.bid(res.Listing.Address, buyer, 1100)
	require.NoError(t, err)
}

func TestBidByInsufficientBuyerLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(10)

	_, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	tr, _, err := f.engine.Gate().TradeStateAddress(buyer, f.house.Address, f.asset, oneSOL)
	require.NoError(t, err)
	_, err = f.ledger.TradeRecord(f.ctx, tr)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
	assert.Nil(t, got.HighestBid)
}

func TestSellerCannotBid(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	f.ledger.Airdrop(f.seller, oneSOL)
	_, err := f.bid(res.Listing.Address, f.seller, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBidNearEndExtendsWindow(t *testing.T) {
	f := newFixture(t)
	res := f.sell(func(r *SellRequest) {
		r.TimeExtPeriod = u32(10)
		r.TimeExtDelta = u32(30)
	})
	buyer := f.buyer(10 * oneSOL)

	br, err := f.bid(res.Listing.Address, buyer, 1)
	require.NoError(t, err)
	assert.False(t, br.Extended)
	assert.Equal(t, startTime+60, br.Listing.EndTime)

	f.ledger.SetTime(startTime + 55)
	br, err = f.bid(res.Listing.Address, buyer, 2)
	require.NoError(t, err)
	assert.True(t, br.Extended)
	assert.Equal(t, startTime+90, br.Listing.EndTime)
	assert.Equal(t, startTime+60, br.PreviousEndTime)

	// Past the original end but inside the extended window.
	f.ledger.SetTime(startTime + 85)
	br, err = f.bid(res.Listing.Address, buyer, 3)
	require.NoError(t, err)
	assert.True(t, br.Extended)
	assert.Equal(t, startTime+120, br.Listing.EndTime)
}

func TestBidExtensionNearMaxEndTimeStaysOpen(t *testing.T) {
	f := newFixture(t)
	res := f.sell(func(r *SellRequest) {
		r.EndTime = math.MaxInt64 - 5
		r.TimeExtPeriod = u32(math.MaxUint32)
		r.TimeExtDelta = u32(100)
	})
	buyer := f.buyer(oneSOL)

	f.ledger.SetTime(math.MaxInt64 - 10)
	br, err := f.bid(res.Listing.Address, buyer, 1)
	require.NoError(t, err)
	assert.True(t, br.Extended)
	assert.Equal(t, int64(math.MaxInt64), br.Listing.EndTime)

	got, err := f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
	assert.Greater(t, got.EndTime, got.StartTime)
	assert.Equal(t, PhaseActive, PhaseAt(got, math.MaxInt64-1))
}

// Settlement pays the seller net of fees and hands the token to the winner.
func TestExecuteSaleSettlesAfterEnd(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(2 * oneSOL)

	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)

	req := ExecuteSaleRequest{
		Listing:     res.Listing.Address,
		Seller:      f.seller,
		Buyer:       buyer,
		TradeRecord: br.TradeRecord.Address,
		BuyerPrice:  oneSOL,
	}
	_, err = f.engine.ExecuteSale(f.ctx, req)
	require.ErrorIs(t, err, domain.ErrAuctionActive)

	f.ledger.Advance(60)
	s, err := f.engine.ExecuteSale(f.ctx, req)
	require.NoError(t, err)

	fee := oneSOL * 200 / 10_000
	royalty := oneSOL * 500 / 10_000
	assert.Equal(t, oneSOL-fee-royalty, f.ledger.Balance(f.seller))
	assert.Equal(t, fee, f.ledger.Balance(f.house.FeeAccount))
	assert.Equal(t, oneSOL, f.ledger.Balance(buyer))
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(buyer, f.asset.TokenMint))
	assert.Zero(t, f.ledger.TokenBalance(f.custody(), f.asset.TokenMint))
	assert.Equal(t, oneSOL-fee-royalty, s.SellerProceeds)
	assert.Equal(t, buyer, s.Buyer)

	f.requireClosed(res.Listing.Address)
	_, err = f.ledger.TradeRecord(f.ctx, br.TradeRecord.Address)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.ExecuteSale(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Creator royalties are split by share.
func TestExecuteSalePaysCreatorsProRata(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(3 * oneSOL)
	price := uint64(1_234_567_891)

	br, err := f.bid(res.Listing.Address, buyer, price)
	require.NoError(t, err)
	f.ledger.Advance(60)

	s, err := f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing:     res.Listing.Address,
		Seller:      f.seller,
		Buyer:       buyer,
		TradeRecord: br.TradeRecord.Address,
		BuyerPrice:  price,
	})
	require.NoError(t, err)

	pool := price * 500 / 10_000
	for i, c := range f.meta.Creators {
		want := pool * uint64(c.Share) / 100
		assert.Equal(t, want, f.ledger.Balance(c.Address), "creator %d", i)
		assert.Equal(t, want, s.Creators[i].Amount)
	}
	assert.Equal(t, pool, s.RoyaltyPool)
}

func TestExecuteSaleRequiresHighestBid(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	a, b := f.buyer(oneSOL), f.buyer(2*oneSOL)

	ra, err := f.bid(res.Listing.Address, a, oneSOL)
	require.NoError(t, err)
	rb, err := f.bid(res.Listing.Address, b, 2*oneSOL)
	require.NoError(t, err)
	f.ledger.Advance(60)

	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: a,
		TradeRecord: ra.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	assert.ErrorIs(t, err, domain.ErrNotHighBidder)

	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: b,
		TradeRecord: rb.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	assert.ErrorIs(t, err, domain.ErrNotHighBidder)

	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: a,
		TradeRecord: rb.TradeRecord.Address, BuyerPrice: 2 * oneSOL,
	})
	assert.ErrorIs(t, err, domain.ErrNotHighBidder)

	_, err = f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)
}

func TestExecuteSaleWithoutBids(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	f.ledger.Advance(60)
	_, err := f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller,
		TradeRecord: res.TradeRecord.Address, BuyerPrice: domain.SellerSentinelPrice,
	})
	assert.ErrorIs(t, err, domain.ErrNotHighBidder)
}

func TestExecuteSaleEnforcesReserve(t *testing.T) {
	f := newFixture(t)
	reserve := 2 * oneSOL
	res := f.sell(func(r *SellRequest) { r.ReservePrice = &reserve })
	buyer := f.buyer(oneSOL)

	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err, "bids below reserve are still recorded")
	f.ledger.Advance(60)

	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: buyer,
		TradeRecord: br.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	assert.ErrorIs(t, err, domain.ErrBelowReservePrice)
}

func TestExecuteSaleAfterWinnerWithdrew(t *testing.T) {
	f := newFixture(t)
	res := f.sell()
	buyer := f.buyer(oneSOL)
	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)

	f.ledger.Advance(60)
	require.NoError(t, f.cancelBid(res.Listing.Address, buyer, br.TradeRecord.Address, oneSOL))

	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: buyer,
		TradeRecord: br.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Seller can still withdraw.
	_, err = f.engine.Cancel(f.ctx, CancelRequest{
		Listing: res.Listing.Address, Wallet: f.seller,
		TradeRecord: res.TradeRecord.Address, BuyerPrice: domain.SellerSentinelPrice,
	})
	require.NoError(t, err)
	f.requireClosed(res.Listing.Address)
}

func TestProgrammableAssetNeedsAuthorizationPayload(t *testing.T) {
	ruleSet := solana.NewWallet().PublicKey()
	f := newFixtureWithMetadata(t, domain.AssetMetadata{
		TokenStandard: domain.TokenStandardProgrammableNonFungible,
		RuleSet:       &ruleSet,
	})

	_, err := f.engine.Sell(f.ctx, SellRequest{Seller: f.seller, Asset: f.asset, StartTime: startTime, EndTime: startTime + 60})
	require.ErrorIs(t, err, domain.ErrTransferRejected)

	payload := &domain.AuthorizationPayload{RuleSet: ruleSet}
	res := f.sell(func(r *SellRequest) { r.Authorization = payload })

	buyer := f.buyer(oneSOL)
	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	f.ledger.Advance(60)

	req := ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: buyer,
		TradeRecord: br.TradeRecord.Address, BuyerPrice: oneSOL,
	}
	_, err = f.engine.ExecuteSale(f.ctx, req)
	require.ErrorIs(t, err, domain.ErrTransferRejected)
	_, err = f.listings.Get(f.ctx, res.Listing.Address)
	require.NoError(t, err)

	req.Authorization = payload
	_, err = f.engine.ExecuteSale(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(buyer, f.asset.TokenMint))
	// No creators: the seller receives everything but the marketplace fee.
	assert.Equal(t, oneSOL-oneSOL*200/10_000, f.ledger.Balance(f.seller))
}

type failingStore struct {
	*memory.ListingStore
	failUpdate bool
	failDelete bool
}

func (s *failingStore) Update(ctx context.Context, l domain.ListingConfig) error {
	if s.failUpdate {
		return assert.AnError
	}
	return s.ListingStore.Update(ctx, l)
}

func (s *failingStore) Delete(ctx context.Context, a solana.PublicKey) error {
	if s.failDelete {
		return assert.AnError
	}
	return s.ListingStore.Delete(ctx, a)
}

func TestStoreFailureCompensatesDelegatedEffects(t *testing.T) {
	f := newFixture(t)
	store := &failingStore{ListingStore: f.listings}
	f.engine = NewEngine(f.engine.Gate(), f.ledger, store, f.house, discardLogger())
	res := f.sell()
	buyer := f.buyer(oneSOL)

	store.failUpdate = true
	_, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, oneSOL, f.ledger.Balance(buyer))
	assert.Zero(t, f.ledger.Escrow(f.house.Address, buyer))

	store.failUpdate = false
	br, err := f.bid(res.Listing.Address, buyer, oneSOL)
	require.NoError(t, err)
	f.ledger.Advance(60)

	store.failDelete = true
	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: buyer,
		TradeRecord: br.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, uint64(1), f.ledger.TokenBalance(f.custody(), f.asset.TokenMint))
	assert.Zero(t, f.ledger.TokenBalance(buyer, f.asset.TokenMint))
	_, err = f.ledger.TradeRecord(f.ctx, res.TradeRecord.Address)
	require.NoError(t, err, "seller claim restored")

	store.failDelete = false
	_, err = f.engine.ExecuteSale(f.ctx, ExecuteSaleRequest{
		Listing: res.Listing.Address, Seller: f.seller, Buyer: buyer,
		TradeRecord: br.TradeRecord.Address, BuyerPrice: oneSOL,
	})
	require.NoError(t, err)
}

func TestUnregisteredHouseIsRejectedByCustodian(t *testing.T) {
	f := newFixture(t)
	other := f.house
	other.Address = solana.NewWallet().PublicKey()
	e := NewEngine(f.engine.Gate(), f.ledger, f.listings, other, discardLogger())

	_, err := e.Sell(f.ctx, SellRequest{Seller: f.seller, Asset: f.asset, StartTime: startTime, EndTime: startTime + 60})
	assert.ErrorIs(t, err, domain.ErrInvalidAuthority)
}
