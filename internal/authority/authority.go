// Package authority derives and verifies the program-controlled addresses the
// auctioneer signs with and stores listings under. Every function is a pure
// derivation over explicit inputs; nothing is cached between calls.
package authority

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const (
	auctioneerSeed    = "auctioneer"
	listingConfigSeed = "listing_config"
	auctionHouseSeed  = "auction_house"
	signerSeed        = "signer"
	feePayerSeed      = "fee_payer"
	treasurySeed      = "treasury"
)

var (
	// DefaultProgramID is the auctioneer program the authority is scoped to.
	DefaultProgramID = solana.MustPublicKeyFromBase58("neer8g6yJq2mQM6KbnViEDAD4gr3gRZyMMf4F2p3MEh")
	// DefaultAuctionHouseProgramID owns trade states and escrow accounts.
	DefaultAuctionHouseProgramID = solana.MustPublicKeyFromBase58("hausS13jsjafwWwGqZTUQRmWyvyxn9EQpqMwV1PBBmk")
)

// Gate derives addresses for one auctioneer program / auction-house program
// pair.
type Gate struct {
	programID      solana.PublicKey
	houseProgramID solana.PublicKey
}

// NewGate returns a Gate for the given program ids. Zero keys fall back to the
// default program ids.
func NewGate(programID, houseProgramID solana.PublicKey) *Gate {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	if houseProgramID.IsZero() {
		houseProgramID = DefaultAuctionHouseProgramID
	}
	return &Gate{programID: programID, houseProgramID: houseProgramID}
}

// ProgramID returns the auctioneer program id.
func (g *Gate) ProgramID() solana.PublicKey { return g.programID }

// AuctionHouseProgramID returns the auction-house program id.
func (g *Gate) AuctionHouseProgramID() solana.PublicKey { return g.houseProgramID }

// Authority derives the auctioneer signing identity for house.
func (g *Gate) Authority(house solana.PublicKey) (domain.Authority, error) {
	addr, bump, err := solana.FindProgramAddress(authoritySeeds(house), g.programID)
	if err != nil {
		return domain.Authority{}, fmt.Errorf("authority: derive signer for %s: %w", house, err)
	}
	return domain.Authority{Address: addr, Bump: bump, AuctionHouse: house}, nil
}

// Verify re-derives auth from its house and bump and fails with
// domain.ErrInvalidAuthority unless it matches exactly.
func (g *Gate) Verify(auth domain.Authority) error {
	seeds := append(authoritySeeds(auth.AuctionHouse), []byte{auth.Bump})
	addr, err := solana.CreateProgramAddress(seeds, g.programID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAuthority, err)
	}
	if !addr.Equals(auth.Address) {
		return fmt.Errorf("%w: %s is not the signer of house %s", domain.ErrInvalidAuthority, auth.Address, auth.AuctionHouse)
	}
	canonical, err := g.Authority(auth.AuctionHouse)
	if err != nil {
		return err
	}
	if canonical.Bump != auth.Bump {
		return fmt.Errorf("%w: non-canonical bump %d", domain.ErrInvalidAuthority, auth.Bump)
	}
	return nil
}

// DelegateRecord derives the auction house's record approving authority as
// its auctioneer.
func (g *Gate) DelegateRecord(house, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctioneerSeed), house.Bytes(), authority.Bytes()},
		g.houseProgramID,
	)
}

// ListingAddress derives the unique listing address for seller's asset.
func (g *Gate) ListingAddress(seller, house solana.PublicKey, asset domain.AssetRef) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			[]byte(listingConfigSeed),
			seller.Bytes(),
			house.Bytes(),
			asset.TokenAccount.Bytes(),
			asset.TreasuryMint.Bytes(),
			asset.TokenMint.Bytes(),
			le64(asset.TokenSize),
		},
		g.programID,
	)
}

// TradeStateAddress derives the trade record address for wallet's claim on
// asset at price.
func (g *Gate) TradeStateAddress(wallet, house solana.PublicKey, asset domain.AssetRef, price uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			[]byte(auctionHouseSeed),
			wallet.Bytes(),
			house.Bytes(),
			asset.TokenAccount.Bytes(),
			asset.TreasuryMint.Bytes(),
			asset.TokenMint.Bytes(),
			le64(price),
			le64(asset.TokenSize),
		},
		g.houseProgramID,
	)
}

// EscrowPaymentAddress derives wallet's escrow account at house.
func (g *Gate) EscrowPaymentAddress(house, wallet solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctionHouseSeed), house.Bytes(), wallet.Bytes()},
		g.houseProgramID,
	)
}

// ProgramAsSigner derives the custody address assets are delegated to while
// listed.
func (g *Gate) ProgramAsSigner() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctionHouseSeed), []byte(signerSeed)},
		g.houseProgramID,
	)
}

// AuctionHouseAddress derives the auction house created by authority for
// payments in treasuryMint.
func (g *Gate) AuctionHouseAddress(authority, treasuryMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctionHouseSeed), authority.Bytes(), treasuryMint.Bytes()},
		g.houseProgramID,
	)
}

// FeeAccountAddress derives the account the house collects marketplace fees in.
func (g *Gate) FeeAccountAddress(house solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctionHouseSeed), house.Bytes(), []byte(feePayerSeed)},
		g.houseProgramID,
	)
}

// TreasuryAddress derives the house treasury account.
func (g *Gate) TreasuryAddress(house solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(auctionHouseSeed), house.Bytes(), []byte(treasurySeed)},
		g.houseProgramID,
	)
}

func authoritySeeds(house solana.PublicKey) [][]byte {
	return [][]byte{[]byte(auctioneerSeed), house.Bytes()}
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
