package authority

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func testAsset() domain.AssetRef {
	return domain.AssetRef{
		TokenMint:    solana.NewWallet().PublicKey(),
		TokenAccount: solana.NewWallet().PublicKey(),
		TreasuryMint: solana.SolMint,
		TokenSize:    1,
	}
}

func TestNewGateDefaults(t *testing.T) {
	g := NewGate(solana.PublicKey{}, solana.PublicKey{})
	assert.Equal(t, DefaultProgramID, g.ProgramID())
	assert.Equal(t, DefaultAuctionHouseProgramID, g.AuctionHouseProgramID())
}

func TestAuthorityIsDeterministicAndVerifies(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	house := solana.NewWallet().PublicKey()

	a1, err := g.Authority(house)
	require.NoError(t, err)
	a2, err := g.Authority(house)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, house, a1.AuctionHouse)

	expected, bump, err := solana.FindProgramAddress([][]byte{[]byte("auctioneer"), house.Bytes()}, DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, expected, a1.Address)
	assert.Equal(t, bump, a1.Bump)

	require.NoError(t, g.Verify(a1))
}

func TestVerifyRejectsForgedAuthority(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	house := solana.NewWallet().PublicKey()
	auth, err := g.Authority(house)
	require.NoError(t, err)

	forged := auth
	forged.Address = solana.NewWallet().PublicKey()
	assert.ErrorIs(t, g.Verify(forged), domain.ErrInvalidAuthority)

	otherHouse := auth
	otherHouse.AuctionHouse = solana.NewWallet().PublicKey()
	assert.ErrorIs(t, g.Verify(otherHouse), domain.ErrInvalidAuthority)

	wrongBump := auth
	wrongBump.Bump = auth.Bump - 1
	assert.ErrorIs(t, g.Verify(wrongBump), domain.ErrInvalidAuthority)
}

func TestAuthorityIsScopedToProgram(t *testing.T) {
	house := solana.NewWallet().PublicKey()
	a, err := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID).Authority(house)
	require.NoError(t, err)
	b, err := NewGate(solana.NewWallet().PublicKey(), DefaultAuctionHouseProgramID).Authority(house)
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, b.Address)
}

func TestListingAddressKeyedByAssetReference(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	seller := solana.NewWallet().PublicKey()
	house := solana.NewWallet().PublicKey()
	asset := testAsset()

	a1, _, err := g.ListingAddress(seller, house, asset)
	require.NoError(t, err)
	a2, _, err := g.ListingAddress(seller, house, asset)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	bigger := asset
	bigger.TokenSize = 2
	a3, _, err := g.ListingAddress(seller, house, bigger)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a3)

	a4, _, err := g.ListingAddress(solana.NewWallet().PublicKey(), house, asset)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a4)
}

func TestTradeStateAddressDependsOnPrice(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	wallet := solana.NewWallet().PublicKey()
	house := solana.NewWallet().PublicKey()
	asset := testAsset()

	p1, _, err := g.TradeStateAddress(wallet, house, asset, 100)
	require.NoError(t, err)
	p2, _, err := g.TradeStateAddress(wallet, house, asset, 101)
	require.NoError(t, err)
	seller, _, err := g.TradeStateAddress(wallet, house, asset, domain.SellerSentinelPrice)
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.NotEqual(t, p1, seller)
}

func TestDelegateRequiresCustodian(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	_, err := g.Delegate(solana.NewWallet().PublicKey(), nil)
	require.Error(t, err)
}

type clockCustodian struct {
	domain.EscrowCustodian
	now int64
}

func (c clockCustodian) CurrentTime(context.Context) (int64, error) { return c.now, nil }

func TestDelegationCarriesVerifiedAuthority(t *testing.T) {
	g := NewGate(DefaultProgramID, DefaultAuctionHouseProgramID)
	house := solana.NewWallet().PublicKey()

	d, err := g.Delegate(house, clockCustodian{now: 42})
	require.NoError(t, err)

	want, err := g.Authority(house)
	require.NoError(t, err)
	assert.Equal(t, want, d.Authority())

	now, err := d.CurrentTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), now)
}

func TestAuctionHouseAccountsDistinct(t *testing.T) {
	g := NewGate(solana.PublicKey{}, solana.PublicKey{})
	owner := solana.NewWallet().PublicKey()

	house, _, err := g.AuctionHouseAddress(owner, solana.SolMint)
	require.NoError(t, err)
	other, _, err := g.AuctionHouseAddress(owner, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, house, other)

	fee, _, err := g.FeeAccountAddress(house)
	require.NoError(t, err)
	treasury, _, err := g.TreasuryAddress(house)
	require.NoError(t, err)
	assert.NotEqual(t, fee, treasury)
	assert.NotEqual(t, house, fee)
}
