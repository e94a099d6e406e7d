package domain

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// SellerSentinelPrice is the trade-record price reserved for the seller's
// listing claim. Passing it to Cancel withdraws the whole listing.
const SellerSentinelPrice uint64 = math.MaxUint64

// AssetRef is the composite key of a listing: which asset, from which token
// account, sold for which payment mint, in what quantity.
type AssetRef struct {
	TokenMint    solana.PublicKey `json:"token_mint"`
	TokenAccount solana.PublicKey `json:"token_account"`
	TreasuryMint solana.PublicKey `json:"treasury_mint"`
	TokenSize    uint64           `json:"token_size"`
}

// HighestBid points at the buyer trade record currently winning the auction.
type HighestBid struct {
	TradeRecord solana.PublicKey `json:"trade_record"`
	Price       uint64           `json:"price"`
}

// ListingConfig is the persistent record of one open auction. It exists
// exactly as long as the listing is open.
type ListingConfig struct {
	Address      solana.PublicKey `json:"address"`
	Bump         uint8            `json:"bump"`
	Seller       solana.PublicKey `json:"seller"`
	AuctionHouse solana.PublicKey `json:"auction_house"`
	Asset        AssetRef         `json:"asset"`

	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`

	ReservePrice       *uint64 `json:"reserve_price,omitempty"`
	MinBidIncrement    *uint64 `json:"min_bid_increment,omitempty"`
	TimeExtPeriod      *uint32 `json:"time_ext_period,omitempty"`
	TimeExtDelta       *uint32 `json:"time_ext_delta,omitempty"`
	AllowHighBidCancel bool    `json:"allow_high_bid_cancel"`

	HighestBid *HighestBid `json:"highest_bid,omitempty"`
}

// Active reports whether now falls inside [StartTime, EndTime).
func (l ListingConfig) Active(now int64) bool {
	return now >= l.StartTime && now < l.EndTime
}

// Ended reports whether the auction window has closed.
func (l ListingConfig) Ended(now int64) bool {
	return now >= l.EndTime
}

// IsHighestBid reports whether tradeRecord is the one currently winning.
func (l ListingConfig) IsHighestBid(tradeRecord solana.PublicKey) bool {
	return l.HighestBid != nil && l.HighestBid.TradeRecord.Equals(tradeRecord)
}

// HasExtension reports whether anti-snipe extension is configured.
func (l ListingConfig) HasExtension() bool {
	return l.TimeExtPeriod != nil && l.TimeExtDelta != nil
}

// Clone returns a deep copy so callers can mutate the result without touching
// the original's optional fields.
func (l ListingConfig) Clone() ListingConfig {
	out := l
	if l.ReservePrice != nil {
		v := *l.ReservePrice
		out.ReservePrice = &v
	}
	if l.MinBidIncrement != nil {
		v := *l.MinBidIncrement
		out.MinBidIncrement = &v
	}
	if l.TimeExtPeriod != nil {
		v := *l.TimeExtPeriod
		out.TimeExtPeriod = &v
	}
	if l.TimeExtDelta != nil {
		v := *l.TimeExtDelta
		out.TimeExtDelta = &v
	}
	if l.HighestBid != nil {
		hb := *l.HighestBid
		out.HighestBid = &hb
	}
	return out
}

// AuctionHouse describes the auction-house instance that delegates
// auctioneering to this service.
type AuctionHouse struct {
	Address              solana.PublicKey `json:"address"`
	ProgramID            solana.PublicKey `json:"program_id"`
	Authority            solana.PublicKey `json:"authority"`
	TreasuryMint         solana.PublicKey `json:"treasury_mint"`
	FeeAccount           solana.PublicKey `json:"fee_account"`
	TreasuryAccount      solana.PublicKey `json:"treasury_account"`
	SellerFeeBasisPoints uint16           `json:"seller_fee_basis_points"`
}
