package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/auctioneer"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingService defines the methods that the listing handler requires from
// the service layer.
type ListingService interface {
	Sell(ctx context.Context, req auctioneer.SellRequest) (auctioneer.SellResult, error)
	Bid(ctx context.Context, req auctioneer.BidRequest) (auctioneer.BidResult, error)
	Cancel(ctx context.Context, req auctioneer.CancelRequest) (auctioneer.CancelResult, error)
	ExecuteSale(ctx context.Context, req auctioneer.ExecuteSaleRequest) (domain.Settlement, error)
	Get(ctx context.Context, address solana.PublicKey) (domain.ListingConfig, error)
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.ListingConfig, error)
	Now(ctx context.Context) (int64, error)
}

// ListingHandler serves the listing lifecycle endpoints.
type ListingHandler struct {
	listings ListingService
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(listings ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		logger:   logHandler(logger, "listing"),
	}
}

type sellRequest struct {
	Seller       solana.PublicKey `json:"seller"`
	TokenMint    solana.PublicKey `json:"token_mint"`
	TokenAccount solana.PublicKey `json:"token_account"`
	TreasuryMint solana.PublicKey `json:"treasury_mint"`
	TokenSize    uint64           `json:"token_size"`

	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`

	ReservePrice       *Amount `json:"reserve_price"`
	MinBidIncrement    *Amount `json:"min_bid_increment"`
	TimeExtPeriod      *uint32 `json:"time_ext_period"`
	TimeExtDelta       *uint32 `json:"time_ext_delta"`
	AllowHighBidCancel bool    `json:"allow_high_bid_cancel"`

	Authorization *domain.AuthorizationPayload `json:"authorization"`
}

type bidRequest struct {
	Buyer solana.PublicKey `json:"buyer"`
	Price Amount           `json:"price"`
}

type cancelRequest struct {
	Wallet      solana.PublicKey `json:"wallet"`
	TradeRecord solana.PublicKey `json:"trade_record"`
	BuyerPrice  Amount           `json:"buyer_price"`
	// WithdrawListing substitutes the seller sentinel for BuyerPrice.
	WithdrawListing bool                         `json:"withdraw_listing"`
	Authorization   *domain.AuthorizationPayload `json:"authorization"`
}

type executeRequest struct {
	Seller        solana.PublicKey             `json:"seller"`
	Buyer         solana.PublicKey             `json:"buyer"`
	TradeRecord   solana.PublicKey             `json:"trade_record"`
	BuyerPrice    Amount                       `json:"buyer_price"`
	Authorization *domain.AuthorizationPayload `json:"authorization"`
}

type bidView struct {
	TradeRecord solana.PublicKey `json:"trade_record"`
	Price       uint64           `json:"price"`
	PriceSOL    string           `json:"price_sol"`
}

type listingView struct {
	domain.ListingConfig
	HighestBid *bidView `json:"highest_bid,omitempty"`
	Phase      string   `json:"phase,omitempty"`
}

func newListingView(l domain.ListingConfig, now int64) listingView {
	v := listingView{ListingConfig: l}
	if l.HighestBid != nil {
		v.HighestBid = &bidView{
			TradeRecord: l.HighestBid.TradeRecord,
			Price:       l.HighestBid.Price,
			PriceSOL:    domain.FormatLamports(l.HighestBid.Price),
		}
	}
	if now != 0 {
		v.Phase = auctioneer.PhaseAt(l, now).String()
	}
	return v
}

// now reads the auction clock for display. A failure only drops the phase.
func (h *ListingHandler) now(r *http.Request) int64 {
	now, err := h.listings.Now(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: clock read failed", slog.String("error", err.Error()))
		return 0
	}
	return now
}

type sellResponse struct {
	Listing     listingView        `json:"listing"`
	TradeRecord domain.TradeRecord `json:"trade_record"`
}

// Sell opens a listing.
// POST /api/listings
func (h *ListingHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireCaller(w, r, req.Seller) {
		return
	}

	res, err := h.listings.Sell(r.Context(), auctioneer.SellRequest{
		Seller: req.Seller,
		Asset: domain.AssetRef{
			TokenMint:    req.TokenMint,
			TokenAccount: req.TokenAccount,
			TreasuryMint: req.TreasuryMint,
			TokenSize:    req.TokenSize,
		},
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		ReservePrice:       req.ReservePrice.lamports(),
		MinBidIncrement:    req.MinBidIncrement.lamports(),
		TimeExtPeriod:      req.TimeExtPeriod,
		TimeExtDelta:       req.TimeExtDelta,
		AllowHighBidCancel: req.AllowHighBidCancel,
		Authorization:      req.Authorization,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "sell", err)
		return
	}
	writeJSON(w, http.StatusCreated, sellResponse{
		Listing:     newListingView(res.Listing, h.now(r)),
		TradeRecord: res.TradeRecord,
	})
}

type listListingsResponse struct {
	Listings []listingView `json:"listings"`
}

// ListListings returns the open listings ordered by end time.
// GET /api/listings?limit=50&offset=0
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.ListOpen(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list listings", err)
		return
	}
	now := h.now(r)
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, newListingView(l, now))
	}
	writeJSON(w, http.StatusOK, listListingsResponse{Listings: out})
}

// GetListing returns one open listing.
// GET /api/listings/{address}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	l, err := h.listings.Get(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get listing", err)
		return
	}
	writeJSON(w, http.StatusOK, newListingView(l, h.now(r)))
}

type bidResponse struct {
	Listing         listingView        `json:"listing"`
	TradeRecord     domain.TradeRecord `json:"trade_record"`
	Extended        bool               `json:"extended"`
	PreviousEndTime int64              `json:"previous_end_time"`
}

// Bid places a bid.
// POST /api/listings/{address}/bids
func (h *ListingHandler) Bid(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	var req bidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireCaller(w, r, req.Buyer) {
		return
	}

	res, err := h.listings.Bid(r.Context(), auctioneer.BidRequest{
		Listing: addr,
		Buyer:   req.Buyer,
		Price:   uint64(req.Price),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "bid", err)
		return
	}
	writeJSON(w, http.StatusOK, bidResponse{
		Listing:         newListingView(res.Listing, h.now(r)),
		TradeRecord:     res.TradeRecord,
		Extended:        res.Extended,
		PreviousEndTime: res.PreviousEndTime,
	})
}

type cancelResponse struct {
	Listing     solana.PublicKey   `json:"listing"`
	TradeRecord domain.TradeRecord `json:"trade_record"`
	Closed      bool               `json:"closed"`
}

// Cancel withdraws a bid or the listing.
// POST /api/listings/{address}/cancel
func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireCaller(w, r, req.Wallet) {
		return
	}
	price := uint64(req.BuyerPrice)
	if req.WithdrawListing {
		price = domain.SellerSentinelPrice
	}

	res, err := h.listings.Cancel(r.Context(), auctioneer.CancelRequest{
		Listing:       addr,
		Wallet:        req.Wallet,
		TradeRecord:   req.TradeRecord,
		BuyerPrice:    price,
		Authorization: req.Authorization,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		Listing:     addr,
		TradeRecord: res.TradeRecord,
		Closed:      res.Closed,
	})
}

// ExecuteSale settles a concluded auction.
// POST /api/listings/{address}/execute
func (h *ListingHandler) ExecuteSale(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	st, err := h.listings.ExecuteSale(r.Context(), auctioneer.ExecuteSaleRequest{
		Listing:       addr,
		Seller:        req.Seller,
		Buyer:         req.Buyer,
		TradeRecord:   req.TradeRecord,
		BuyerPrice:    uint64(req.BuyerPrice),
		Authorization: req.Authorization,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "execute sale", err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(st))
}

func (a *Amount) lamports() *uint64 {
	if a == nil {
		return nil
	}
	v := uint64(*a)
	return &v
}
