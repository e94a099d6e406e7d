package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType names a listing lifecycle event.
type EventType string

const (
	EventListingCreated   EventType = "listing_created"
	EventBidPlaced        EventType = "bid_placed"
	EventBidCancelled     EventType = "bid_cancelled"
	EventListingCancelled EventType = "listing_cancelled"
	EventListingSettled   EventType = "listing_settled"
)

// ListingEvent is published on the signal bus after every successful
// operation.
type ListingEvent struct {
	ID           string           `json:"id"`
	Type         EventType        `json:"event"`
	Listing      solana.PublicKey `json:"listing"`
	AuctionHouse solana.PublicKey `json:"auction_house"`
	Wallet       solana.PublicKey `json:"wallet"`
	TradeRecord  solana.PublicKey `json:"trade_record"`
	Price        uint64           `json:"price,omitempty"`
	EndTime      int64            `json:"end_time,omitempty"`
	Extended     bool             `json:"extended,omitempty"`
	At           time.Time        `json:"at"`
}

// Channel names used on the signal bus.
const (
	ChannelListings = "listings"
	StreamListings  = "stream:listings"
)

// ListingChannel returns the per-listing pub/sub channel.
func ListingChannel(address solana.PublicKey) string {
	return "ch:listing:" + address.String()
}
