package auctioneer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// SellRequest opens a listing.
type SellRequest struct {
	Seller solana.PublicKey
	Asset  domain.AssetRef

	StartTime int64
	EndTime   int64

	ReservePrice       *uint64
	MinBidIncrement    *uint64
	TimeExtPeriod      *uint32
	TimeExtDelta       *uint32
	AllowHighBidCancel bool

	// Authorization is forwarded unmodified to the custodian for
	// programmable assets.
	Authorization *domain.AuthorizationPayload
}

// SellResult is the created listing and the seller's listing claim.
type SellResult struct {
	Listing     domain.ListingConfig
	TradeRecord domain.TradeRecord
}

// Sell creates the listing record and moves the asset into program custody.
func (e *Engine) Sell(ctx context.Context, req SellRequest) (SellResult, error) {
	if err := validateSell(req); err != nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell: %w", err)
	}
	if req.Asset.TreasuryMint.IsZero() {
		req.Asset.TreasuryMint = e.house.TreasuryMint
	}
	if !req.Asset.TreasuryMint.Equals(e.house.TreasuryMint) {
		return SellResult{}, fmt.Errorf("auctioneer: sell: %w: treasury mint %s", domain.ErrAssetMismatch, req.Asset.TreasuryMint)
	}

	addr, bump, err := e.gate.ListingAddress(req.Seller, e.house.Address, req.Asset)
	if err != nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell: derive listing: %w", err)
	}
	if _, err := e.listings.Get(ctx, addr); err == nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell %s: %w", addr, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return SellResult{}, fmt.Errorf("auctioneer: sell %s: %w", addr, err)
	}

	listing := domain.ListingConfig{
		Address:            addr,
		Bump:               bump,
		Seller:             req.Seller,
		AuctionHouse:       e.house.Address,
		Asset:              req.Asset,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		ReservePrice:       req.ReservePrice,
		MinBidIncrement:    req.MinBidIncrement,
		TimeExtPeriod:      req.TimeExtPeriod,
		TimeExtDelta:       req.TimeExtDelta,
		AllowHighBidCancel: req.AllowHighBidCancel,
	}.Clone()

	custody, err := e.custody()
	if err != nil {
		return SellResult{}, err
	}
	d, _, err := e.delegate(ctx)
	if err != nil {
		return SellResult{}, err
	}

	var rollback undo
	tr, created, err := d.OpenTradeRecord(ctx, req.Seller, req.Asset, domain.SellerSentinelPrice)
	if err != nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell %s: %w", addr, err)
	}
	if created {
		rollback.push(func(ctx context.Context) error { return d.CloseTradeRecord(ctx, tr.Address) })
	}

	if err := d.TransferAsset(ctx, req.Seller, custody, req.Asset, req.Authorization); err != nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell %s: %w", addr, rollback.run(ctx, e.logger, err))
	}
	rollback.push(func(ctx context.Context) error {
		return d.TransferAsset(ctx, custody, req.Seller, req.Asset, req.Authorization)
	})

	if err := e.listings.Create(ctx, listing); err != nil {
		return SellResult{}, fmt.Errorf("auctioneer: sell %s: store: %w", addr, rollback.run(ctx, e.logger, err))
	}

	e.logger.InfoContext(ctx, "listing created",
		slog.String("listing", addr.String()),
		slog.String("seller", req.Seller.String()),
		slog.String("mint", req.Asset.TokenMint.String()),
		slog.Int64("start", req.StartTime),
		slog.Int64("end", req.EndTime),
	)
	return SellResult{Listing: listing, TradeRecord: tr}, nil
}
