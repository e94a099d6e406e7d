package auctioneer

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func TestComputePayoutSplitsPrice(t *testing.T) {
	c1, c2 := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	p, err := ComputePayout(1_000_000_003, 200, 500, []domain.Creator{
		{Address: c1, Share: 25},
		{Address: c2, Share: 75},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(20_000_000), p.MarketplaceFee)
	assert.Equal(t, uint64(50_000_000), p.RoyaltyPool)
	require.Len(t, p.Creators, 2)
	assert.Equal(t, uint64(12_500_000), p.Creators[0].Amount)
	assert.Equal(t, uint64(37_500_000), p.Creators[1].Amount)
	assert.Equal(t, uint64(1_000_000_003-20_000_000-50_000_000), p.SellerProceeds)
	assert.Zero(t, p.Retained)
}

func TestComputePayoutTruncatesAndRetainsRemainder(t *testing.T) {
	creators := []domain.Creator{
		{Address: solana.NewWallet().PublicKey(), Share: 33},
		{Address: solana.NewWallet().PublicKey(), Share: 33},
		{Address: solana.NewWallet().PublicKey(), Share: 34},
	}
	// pool = 1001 * 1000 / 10000 = 100 (truncated from 100.1)
	p, err := ComputePayout(1001, 0, 1000, creators)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), p.RoyaltyPool)
	assert.Equal(t, uint64(33), p.Creators[0].Amount)
	assert.Equal(t, uint64(33), p.Creators[1].Amount)
	assert.Equal(t, uint64(34), p.Creators[2].Amount)
	assert.Zero(t, p.Retained)

	// pool = 10, shares floor to 3 + 3 + 3 = 9, one lamport retained
	p, err = ComputePayout(100, 0, 1000, creators)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.RoyaltyPool)
	assert.Equal(t, uint64(1), p.Retained)
	assert.Equal(t, uint64(90), p.SellerProceeds)
}

func TestComputePayoutDoesNotOverflow(t *testing.T) {
	p, err := ComputePayout(math.MaxUint64-1, 10_000, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), p.MarketplaceFee)
	assert.Zero(t, p.SellerProceeds)
}

func TestComputePayoutValidation(t *testing.T) {
	_, err := ComputePayout(100, 100, 500, []domain.Creator{{Address: solana.NewWallet().PublicKey(), Share: 99}})
	assert.ErrorIs(t, err, domain.ErrInvalidCreatorShares)

	_, err = ComputePayout(100, 6000, 5000, []domain.Creator{{Address: solana.NewWallet().PublicKey(), Share: 100}})
	assert.ErrorIs(t, err, domain.ErrInvalidBasisPoints)

	p, err := ComputePayout(100, 100, 500, nil)
	require.NoError(t, err)
	assert.Zero(t, p.RoyaltyPool)
	assert.Equal(t, uint64(99), p.SellerProceeds)
}

func TestPayoutSplitsSkipZeroAmounts(t *testing.T) {
	fee, seller := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	p := Payout{
		MarketplaceFee: 0,
		Creators:       []domain.CreatorPayout{{Creator: solana.NewWallet().PublicKey(), Amount: 0}},
		SellerProceeds: 10,
	}
	assert.Equal(t, []domain.Split{{Destination: seller, Amount: 10}}, p.Splits(fee, seller))
}
