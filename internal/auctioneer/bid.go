package auctioneer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// BidRequest places a bid on an open listing.
type BidRequest struct {
	Listing solana.PublicKey
	Buyer   solana.PublicKey
	Price   uint64
}

// BidResult is the listing after the bid and the buyer's trade record.
type BidResult struct {
	Listing     domain.ListingConfig
	TradeRecord domain.TradeRecord
	// Extended reports whether the bid pushed the end time out.
	Extended        bool
	PreviousEndTime int64
}

// Bid escrows price for buyer and makes it the highest bid.
func (e *Engine) Bid(ctx context.Context, req BidRequest) (BidResult, error) {
	if req.Buyer.IsZero() {
		return BidResult{}, fmt.Errorf("auctioneer: bid: %w: buyer required", domain.ErrUnauthorized)
	}
	current, err := e.Listing(ctx, req.Listing)
	if err != nil {
		return BidResult{}, err
	}
	if req.Buyer.Equals(current.Seller) {
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w: seller cannot bid", req.Listing, domain.ErrUnauthorized)
	}

	d, now, err := e.delegate(ctx)
	if err != nil {
		return BidResult{}, err
	}
	switch PhaseAt(current, now) {
	case PhasePending:
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w: starts at %d", req.Listing, domain.ErrAuctionNotStarted, current.StartTime)
	case PhaseEnded:
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w: ended at %d", req.Listing, domain.ErrAuctionEnded, current.EndTime)
	}
	if err := validateBidPrice(current, req.Price); err != nil {
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w", req.Listing, err)
	}

	next := current.Clone()
	next.EndTime, _ = extendedEnd(current, now)

	var rollback undo
	tr, created, err := d.OpenTradeRecord(ctx, req.Buyer, current.Asset, req.Price)
	if err != nil {
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w", req.Listing, err)
	}
	// An existing record at this price already has its price committed in
	// escrow (Withdraw never frees it), so it backs the bid as is.
	if created {
		rollback.push(func(ctx context.Context) error { return d.CloseTradeRecord(ctx, tr.Address) })
		if err := d.LockFunds(ctx, req.Buyer, req.Price); err != nil {
			return BidResult{}, fmt.Errorf("auctioneer: bid %s: %w", req.Listing, rollback.run(ctx, e.logger, err))
		}
		rollback.push(func(ctx context.Context) error {
			return d.ReleaseFunds(ctx, tr.Address, []domain.Split{{Destination: req.Buyer, Amount: req.Price}})
		})
	}

	next.HighestBid = &domain.HighestBid{TradeRecord: tr.Address, Price: req.Price}
	if err := e.listings.Update(ctx, next); err != nil {
		return BidResult{}, fmt.Errorf("auctioneer: bid %s: store: %w", req.Listing, rollback.run(ctx, e.logger, err))
	}

	res := BidResult{
		Listing:         next,
		TradeRecord:     tr,
		Extended:        next.EndTime != current.EndTime,
		PreviousEndTime: current.EndTime,
	}
	e.logger.InfoContext(ctx, "bid placed",
		slog.String("listing", req.Listing.String()),
		slog.String("buyer", req.Buyer.String()),
		slog.Uint64("price", req.Price),
		slog.Bool("extended", res.Extended),
		slog.Int64("end", next.EndTime),
	)
	return res, nil
}
