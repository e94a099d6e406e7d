package auctioneer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func validateSell(req SellRequest) error {
	if req.StartTime >= req.EndTime {
		return fmt.Errorf("%w: start %d, end %d", domain.ErrInvalidWindow, req.StartTime, req.EndTime)
	}
	if req.Asset.TokenSize == 0 {
		return domain.ErrInvalidTokenSize
	}
	if (req.TimeExtPeriod == nil) != (req.TimeExtDelta == nil) {
		return domain.ErrInvalidExtension
	}
	if req.TimeExtDelta != nil && *req.TimeExtDelta == 0 {
		return domain.ErrInvalidExtension
	}
	if req.Asset.TokenMint.IsZero() || req.Asset.TokenAccount.IsZero() || req.Seller.IsZero() {
		return fmt.Errorf("%w: seller, token mint and token account are required", domain.ErrAssetMismatch)
	}
	return nil
}

// validateBidPrice checks price against the current highest bid and the
// listing's minimum increment.
func validateBidPrice(l domain.ListingConfig, price uint64) error {
	if price == 0 || price == domain.SellerSentinelPrice {
		return domain.ErrInvalidPrice
	}
	if l.HighestBid == nil {
		return nil
	}
	high := l.HighestBid.Price
	if price <= high {
		return fmt.Errorf("%w: %d <= %d", domain.ErrBidTooLow, price, high)
	}
	if l.MinBidIncrement != nil && price-high < *l.MinBidIncrement {
		return fmt.Errorf("%w: increment %d < %d", domain.ErrBidTooLow, price-high, *l.MinBidIncrement)
	}
	return nil
}

// matchTradeRecord checks that tr is wallet's claim on the listing's asset at
// price.
func matchTradeRecord(l domain.ListingConfig, tr domain.TradeRecord, wallet solana.PublicKey, price uint64) error {
	switch {
	case !tr.AuctionHouse.Equals(l.AuctionHouse):
		return fmt.Errorf("%w: house %s", domain.ErrTradeRecordMismatch, tr.AuctionHouse)
	case tr.Asset != l.Asset:
		return fmt.Errorf("%w: asset", domain.ErrTradeRecordMismatch)
	case !tr.Wallet.Equals(wallet):
		return fmt.Errorf("%w: wallet %s", domain.ErrTradeRecordMismatch, tr.Wallet)
	case tr.Price != price:
		return fmt.Errorf("%w: price %d, want %d", domain.ErrTradeRecordMismatch, tr.Price, price)
	}
	return nil
}
