package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// CreatorPayout is the royalty amount credited to one creator.
type CreatorPayout struct {
	Creator solana.PublicKey `json:"creator"`
	Share   uint8            `json:"share"`
	Amount  uint64           `json:"amount"`
}

// Settlement is the receipt of one concluded auction.
type Settlement struct {
	ID             string           `json:"id"`
	Listing        solana.PublicKey `json:"listing"`
	AuctionHouse   solana.PublicKey `json:"auction_house"`
	Seller         solana.PublicKey `json:"seller"`
	Buyer          solana.PublicKey `json:"buyer"`
	TradeRecord    solana.PublicKey `json:"trade_record"`
	TokenMint      solana.PublicKey `json:"token_mint"`
	TokenSize      uint64           `json:"token_size"`
	Price          uint64           `json:"price"`
	MarketplaceFee uint64           `json:"marketplace_fee"`
	RoyaltyPool    uint64           `json:"royalty_pool"`
	Creators       []CreatorPayout  `json:"creators"`
	SellerProceeds uint64           `json:"seller_proceeds"`
	Retained       uint64           `json:"retained"`
	SettledAt      time.Time        `json:"settled_at"`
	Signature      string           `json:"signature,omitempty"`
}
