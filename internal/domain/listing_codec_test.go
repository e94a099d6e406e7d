package domain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestListingConfigRecordRoundTrip(t *testing.T) {
	l := ListingConfig{
		Address:      solana.NewWallet().PublicKey(),
		Bump:         254,
		Seller:       solana.NewWallet().PublicKey(),
		AuctionHouse: solana.NewWallet().PublicKey(),
		Asset: AssetRef{
			TokenMint:    solana.NewWallet().PublicKey(),
			TokenAccount: solana.NewWallet().PublicKey(),
			TreasuryMint: solana.SolMint,
			TokenSize:    1,
		},
		StartTime:          -5,
		EndTime:            1_700_000_060,
		ReservePrice:       ptr(uint64(2_000_000_000)),
		TimeExtPeriod:      ptr(uint32(30)),
		TimeExtDelta:       ptr(uint32(60)),
		AllowHighBidCancel: true,
		HighestBid: &HighestBid{
			TradeRecord: solana.NewWallet().PublicKey(),
			Price:       1_000_000_000,
		},
	}

	data, err := EncodeListingConfig(l)
	require.NoError(t, err)
	assert.Len(t, data, ListingConfigSpace)
	assert.Equal(t, ListingConfigDiscriminator[:], data[:8])

	got, err := DecodeListingConfig(l.Address, data)
	require.NoError(t, err)
	assert.Equal(t, l, got)
	assert.Nil(t, got.MinBidIncrement)
}

func TestListingConfigRecordIsFixedSize(t *testing.T) {
	empty, err := EncodeListingConfig(ListingConfig{})
	require.NoError(t, err)
	assert.Len(t, empty, ListingConfigSpace)

	got, err := DecodeListingConfig(solana.PublicKey{}, empty)
	require.NoError(t, err)
	assert.Nil(t, got.HighestBid)
	assert.Nil(t, got.ReservePrice)
}

func TestDecodeListingConfigRejectsBadInput(t *testing.T) {
	data, err := EncodeListingConfig(ListingConfig{EndTime: 10})
	require.NoError(t, err)

	_, err = DecodeListingConfig(solana.PublicKey{}, data[:ListingConfigSpace-1])
	assert.ErrorIs(t, err, ErrInvalidRecord)

	bad := append([]byte(nil), data...)
	bad[0] ^= 0xff
	_, err = DecodeListingConfig(solana.PublicKey{}, bad)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestCloneIsDeep(t *testing.T) {
	l := ListingConfig{
		ReservePrice: ptr(uint64(5)),
		HighestBid:   &HighestBid{Price: 7},
	}
	c := l.Clone()
	*c.ReservePrice = 6
	c.HighestBid.Price = 8
	assert.Equal(t, uint64(5), *l.ReservePrice)
	assert.Equal(t, uint64(7), l.HighestBid.Price)
}

func TestListingWindow(t *testing.T) {
	l := ListingConfig{StartTime: 100, EndTime: 200}
	assert.False(t, l.Active(99))
	assert.True(t, l.Active(100))
	assert.True(t, l.Active(199))
	assert.False(t, l.Active(200))
	assert.True(t, l.Ended(200))
	assert.False(t, l.Ended(199))
}
