package auctioneer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ExecuteSaleRequest settles a concluded auction with its winning bid.
type ExecuteSaleRequest struct {
	Listing     solana.PublicKey
	Seller      solana.PublicKey
	Buyer       solana.PublicKey
	TradeRecord solana.PublicKey
	BuyerPrice  uint64

	Authorization *domain.AuthorizationPayload
}

// ExecuteSale transfers the asset to the winner, pays out escrow and destroys
// the listing.
func (e *Engine) ExecuteSale(ctx context.Context, req ExecuteSaleRequest) (domain.Settlement, error) {
	l, err := e.Listing(ctx, req.Listing)
	if err != nil {
		return domain.Settlement{}, err
	}
	if !req.Seller.IsZero() && !req.Seller.Equals(l.Seller) {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w: seller %s", l.Address, domain.ErrUnauthorized, req.Seller)
	}

	d, now, err := e.delegate(ctx)
	if err != nil {
		return domain.Settlement{}, err
	}
	if PhaseAt(l, now) != PhaseEnded {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w: ends at %d", l.Address, domain.ErrAuctionActive, l.EndTime)
	}
	if !l.IsHighestBid(req.TradeRecord) || l.HighestBid.Price != req.BuyerPrice {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, domain.ErrNotHighBidder)
	}
	if l.ReservePrice != nil && req.BuyerPrice < *l.ReservePrice {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w: %d < %d", l.Address, domain.ErrBelowReservePrice, req.BuyerPrice, *l.ReservePrice)
	}

	tr, err := d.TradeRecord(ctx, req.TradeRecord)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, err)
	}
	buyer := req.Buyer
	if buyer.IsZero() {
		buyer = tr.Wallet
	}
	if err := matchTradeRecord(l, tr, buyer, req.BuyerPrice); err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w: %w", l.Address, domain.ErrNotHighBidder, err)
	}

	md, err := d.AssetMetadata(ctx, l.Asset.TokenMint)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, err)
	}
	payout, err := ComputePayout(req.BuyerPrice, e.house.SellerFeeBasisPoints, md.SellerFeeBasisPoints, md.Creators)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, err)
	}
	sellerRecord, _, err := e.gate.TradeStateAddress(l.Seller, l.AuctionHouse, l.Asset, domain.SellerSentinelPrice)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: derive seller record: %w", l.Address, err)
	}
	custody, err := e.custody()
	if err != nil {
		return domain.Settlement{}, err
	}

	// Funds move last: every earlier step can be compensated, a payout cannot.
	var rollback undo
	if err := d.TransferAsset(ctx, custody, buyer, l.Asset, req.Authorization); err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, err)
	}
	rollback.push(func(ctx context.Context) error {
		return d.TransferAsset(ctx, buyer, custody, l.Asset, req.Authorization)
	})
	if err := d.CloseTradeRecord(ctx, sellerRecord); err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, rollback.run(ctx, e.logger, err))
	}
	rollback.push(func(ctx context.Context) error {
		_, _, err := d.OpenTradeRecord(ctx, l.Seller, l.Asset, domain.SellerSentinelPrice)
		return err
	})
	if err := e.listings.Delete(ctx, l.Address); err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: store: %w", l.Address, rollback.run(ctx, e.logger, err))
	}
	rollback.push(func(ctx context.Context) error { return e.listings.Create(ctx, l) })
	if err := d.ReleaseFunds(ctx, tr.Address, payout.Splits(e.house.FeeAccount, l.Seller)); err != nil {
		return domain.Settlement{}, fmt.Errorf("auctioneer: execute %s: %w", l.Address, rollback.run(ctx, e.logger, err))
	}
	if err := d.CloseTradeRecord(ctx, tr.Address); err != nil {
		e.logger.WarnContext(ctx, "buyer trade record left open after settlement",
			slog.String("listing", l.Address.String()),
			slog.String("trade_record", tr.Address.String()),
			slog.String("error", err.Error()),
		)
	}

	s := domain.Settlement{
		ID:             uuid.NewString(),
		Listing:        l.Address,
		AuctionHouse:   l.AuctionHouse,
		Seller:         l.Seller,
		Buyer:          buyer,
		TradeRecord:    tr.Address,
		TokenMint:      l.Asset.TokenMint,
		TokenSize:      l.Asset.TokenSize,
		Price:          payout.Price,
		MarketplaceFee: payout.MarketplaceFee,
		RoyaltyPool:    payout.RoyaltyPool,
		Creators:       payout.Creators,
		SellerProceeds: payout.SellerProceeds,
		Retained:       payout.Retained,
		SettledAt:      time.Unix(now, 0).UTC(),
	}
	e.logger.InfoContext(ctx, "listing settled",
		slog.String("listing", l.Address.String()),
		slog.String("buyer", buyer.String()),
		slog.Uint64("price", s.Price),
		slog.Uint64("fee", s.MarketplaceFee),
		slog.Uint64("royalty", s.RoyaltyPool),
		slog.Uint64("seller_proceeds", s.SellerProceeds),
	)
	return s, nil
}
