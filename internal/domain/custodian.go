package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// TokenStandard distinguishes plain assets from programmable (rule-gated) ones.
type TokenStandard uint8

const (
	TokenStandardNonFungible TokenStandard = iota
	TokenStandardProgrammableNonFungible
)

// String returns the wire name of the token standard.
func (s TokenStandard) String() string {
	switch s {
	case TokenStandardProgrammableNonFungible:
		return "programmable_non_fungible"
	default:
		return "non_fungible"
	}
}

// Creator is one royalty recipient of an asset. Shares across an asset's
// creators sum to 100.
type Creator struct {
	Address solana.PublicKey `json:"address"`
	Share   uint8            `json:"share"`
}

// AssetMetadata is the custodian's view of an asset's royalty and transfer
// rules.
type AssetMetadata struct {
	Mint                 solana.PublicKey  `json:"mint"`
	SellerFeeBasisPoints uint16            `json:"seller_fee_basis_points"`
	Creators             []Creator         `json:"creators"`
	TokenStandard        TokenStandard     `json:"token_standard"`
	RuleSet              *solana.PublicKey `json:"rule_set,omitempty"`
}

// AuthorizationPayload is the extra authorization data programmable assets
// require on transfer. The core forwards it to the custodian unmodified.
type AuthorizationPayload struct {
	RuleSet solana.PublicKey  `json:"rule_set"`
	Data    map[string]string `json:"data,omitempty"`
}

// TradeRecord is the custodian-owned record of one outstanding bid or
// listing claim.
type TradeRecord struct {
	Address      solana.PublicKey `json:"address"`
	Bump         uint8            `json:"bump"`
	Wallet       solana.PublicKey `json:"wallet"`
	AuctionHouse solana.PublicKey `json:"auction_house"`
	Asset        AssetRef         `json:"asset"`
	Price        uint64           `json:"price"`
}

// IsSellerClaim reports whether the record is a seller's listing claim.
func (t TradeRecord) IsSellerClaim() bool {
	return t.Price == SellerSentinelPrice
}

// Split is one destination of released escrow funds.
type Split struct {
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
}

// Authority is the program-controlled signing identity scoped to one auction
// house, together with its derivation bump.
type Authority struct {
	Address      solana.PublicKey `json:"address"`
	Bump         uint8            `json:"bump"`
	AuctionHouse solana.PublicKey `json:"auction_house"`
}

// EscrowCustodian owns asset custody, payment escrow, and trade records.
// Every call carries the delegated authority it is authorized by.
type EscrowCustodian interface {
	// OpenTradeRecord reports created=false when the record already existed.
	OpenTradeRecord(ctx context.Context, auth Authority, party solana.PublicKey, asset AssetRef, price uint64) (tr TradeRecord, created bool, err error)
	CloseTradeRecord(ctx context.Context, auth Authority, ref solana.PublicKey) error
	TradeRecord(ctx context.Context, ref solana.PublicKey) (TradeRecord, error)
	LockFunds(ctx context.Context, auth Authority, party solana.PublicKey, amount uint64) error
	ReleaseFunds(ctx context.Context, auth Authority, ref solana.PublicKey, splits []Split) error
	TransferAsset(ctx context.Context, auth Authority, from, to solana.PublicKey, asset AssetRef, payload *AuthorizationPayload) error
	AssetMetadata(ctx context.Context, mint solana.PublicKey) (AssetMetadata, error)
	CurrentTime(ctx context.Context) (int64, error)
}
