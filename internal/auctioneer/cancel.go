package auctioneer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// CancelRequest withdraws a trade record. BuyerPrice equal to
// domain.SellerSentinelPrice withdraws the whole listing.
type CancelRequest struct {
	Listing     solana.PublicKey
	Wallet      solana.PublicKey
	TradeRecord solana.PublicKey
	BuyerPrice  uint64

	Authorization *domain.AuthorizationPayload
}

// CancelResult reports what the cancel removed.
type CancelResult struct {
	Listing     domain.ListingConfig
	TradeRecord domain.TradeRecord
	// Closed is true when the listing record was destroyed.
	Closed bool
}

// Cancel withdraws a bid, or the listing itself when called by the seller
// with the sentinel price.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (CancelResult, error) {
	l, err := e.Listing(ctx, req.Listing)
	if err != nil {
		return CancelResult{}, err
	}
	d, now, err := e.delegate(ctx)
	if err != nil {
		return CancelResult{}, err
	}
	tr, err := d.TradeRecord(ctx, req.TradeRecord)
	if err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", req.Listing, err)
	}

	if req.BuyerPrice == domain.SellerSentinelPrice {
		return e.withdrawListing(ctx, d, l, tr, req)
	}

	if err := matchTradeRecord(l, tr, req.Wallet, req.BuyerPrice); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", req.Listing, err)
	}
	if l.IsHighestBid(tr.Address) && now < l.EndTime && !l.AllowHighBidCancel {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", req.Listing, domain.ErrCannotCancelHighestBid)
	}

	var rollback undo
	if err := d.ReleaseFunds(ctx, tr.Address, []domain.Split{{Destination: tr.Wallet, Amount: tr.Price}}); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", req.Listing, err)
	}
	rollback.push(func(ctx context.Context) error { return d.LockFunds(ctx, tr.Wallet, tr.Price) })
	if err := d.CloseTradeRecord(ctx, tr.Address); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", req.Listing, rollback.run(ctx, e.logger, err))
	}

	e.logger.InfoContext(ctx, "bid cancelled",
		slog.String("listing", l.Address.String()),
		slog.String("buyer", tr.Wallet.String()),
		slog.Uint64("price", tr.Price),
		slog.Bool("was_highest", l.IsHighestBid(tr.Address)),
	)
	return CancelResult{Listing: l, TradeRecord: tr}, nil
}

func (e *Engine) withdrawListing(ctx context.Context, d *authority.Delegation, l domain.ListingConfig, tr domain.TradeRecord, req CancelRequest) (CancelResult, error) {
	if !req.Wallet.Equals(l.Seller) {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w: only the seller can withdraw the listing", l.Address, domain.ErrUnauthorized)
	}
	if err := matchTradeRecord(l, tr, l.Seller, domain.SellerSentinelPrice); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", l.Address, err)
	}
	custody, err := e.custody()
	if err != nil {
		return CancelResult{}, err
	}

	var rollback undo
	if err := d.TransferAsset(ctx, custody, l.Seller, l.Asset, req.Authorization); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", l.Address, err)
	}
	rollback.push(func(ctx context.Context) error {
		return d.TransferAsset(ctx, l.Seller, custody, l.Asset, req.Authorization)
	})
	if err := d.CloseTradeRecord(ctx, tr.Address); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: %w", l.Address, rollback.run(ctx, e.logger, err))
	}
	rollback.push(func(ctx context.Context) error {
		_, _, err := d.OpenTradeRecord(ctx, l.Seller, l.Asset, domain.SellerSentinelPrice)
		return err
	})
	if err := e.listings.Delete(ctx, l.Address); err != nil {
		return CancelResult{}, fmt.Errorf("auctioneer: cancel %s: store: %w", l.Address, rollback.run(ctx, e.logger, err))
	}

	e.logger.InfoContext(ctx, "listing withdrawn",
		slog.String("listing", l.Address.String()),
		slog.String("seller", l.Seller.String()),
	)
	return CancelResult{Listing: l, TradeRecord: tr, Closed: true}, nil
}
