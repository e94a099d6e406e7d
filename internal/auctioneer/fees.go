package auctioneer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const (
	basisPointsDenominator = 10_000
	sharesDenominator      = 100
)

// Payout is the division of a winning price between the marketplace, the
// creators and the seller.
type Payout struct {
	Price          uint64
	MarketplaceFee uint64
	RoyaltyPool    uint64
	Creators       []domain.CreatorPayout
	SellerProceeds uint64
	// Retained is the rounding remainder of the royalty pool that no creator
	// receives.
	Retained uint64
}

// ComputePayout splits price. Every cut truncates:
//
//	fee       = price * houseBps / 10000
//	pool      = price * royaltyBps / 10000
//	creator_i = pool * share_i / 100
//	seller    = price - fee - pool
//
// An asset without creators carries no royalty pool.
func ComputePayout(price uint64, houseBps, royaltyBps uint16, creators []domain.Creator) (Payout, error) {
	if len(creators) == 0 {
		royaltyBps = 0
	}
	if int(houseBps)+int(royaltyBps) > basisPointsDenominator {
		return Payout{}, fmt.Errorf("%w: house %d + royalty %d", domain.ErrInvalidBasisPoints, houseBps, royaltyBps)
	}
	var total int
	for _, c := range creators {
		total += int(c.Share)
	}
	if len(creators) > 0 && total != sharesDenominator {
		return Payout{}, fmt.Errorf("%w: got %d", domain.ErrInvalidCreatorShares, total)
	}

	p := Payout{Price: price}
	p.MarketplaceFee = mulDiv(price, uint64(houseBps), basisPointsDenominator)
	p.RoyaltyPool = mulDiv(price, uint64(royaltyBps), basisPointsDenominator)

	var paid uint64
	p.Creators = make([]domain.CreatorPayout, 0, len(creators))
	for _, c := range creators {
		amt := mulDiv(p.RoyaltyPool, uint64(c.Share), sharesDenominator)
		paid += amt
		p.Creators = append(p.Creators, domain.CreatorPayout{Creator: c.Address, Share: c.Share, Amount: amt})
	}
	p.Retained = p.RoyaltyPool - paid
	p.SellerProceeds = price - p.MarketplaceFee - p.RoyaltyPool
	return p, nil
}

// Splits returns the escrow release destinations, skipping zero amounts.
func (p Payout) Splits(feeAccount, seller solana.PublicKey) []domain.Split {
	out := make([]domain.Split, 0, len(p.Creators)+2)
	if p.MarketplaceFee > 0 {
		out = append(out, domain.Split{Destination: feeAccount, Amount: p.MarketplaceFee})
	}
	for _, c := range p.Creators {
		if c.Amount > 0 {
			out = append(out, domain.Split{Destination: c.Creator, Amount: c.Amount})
		}
	}
	if p.SellerProceeds > 0 {
		out = append(out, domain.Split{Destination: seller, Amount: p.SellerProceeds})
	}
	return out
}

// mulDiv computes a*b/d without intermediate overflow. The result never
// exceeds a because callers keep b <= d.
func mulDiv(a, b, d uint64) uint64 {
	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	return x.Uint64()
}
