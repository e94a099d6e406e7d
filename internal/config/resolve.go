package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Gate builds the authority gate for the configured program ids.
func (p ProgramsConfig) Gate() (*authority.Gate, error) {
	auctioneer, err := optionalKey("programs.auctioneer", p.Auctioneer)
	if err != nil {
		return nil, err
	}
	house, err := optionalKey("programs.auction_house", p.AuctionHouse)
	if err != nil {
		return nil, err
	}
	return authority.NewGate(auctioneer, house), nil
}

// Resolve turns the configured keys into a domain.AuctionHouse, deriving the
// house address and its fee and treasury accounts when they are not set.
func (c AuctionHouseConfig) Resolve(gate *authority.Gate) (domain.AuctionHouse, error) {
	out := domain.AuctionHouse{
		ProgramID:            gate.AuctionHouseProgramID(),
		SellerFeeBasisPoints: c.SellerFeeBasisPoints,
	}
	var err error
	if out.TreasuryMint, err = optionalKey("auction_house.treasury_mint", c.TreasuryMint); err != nil {
		return out, err
	}
	if out.TreasuryMint.IsZero() {
		out.TreasuryMint = solana.SolMint
	}
	if out.Authority, err = optionalKey("auction_house.authority", c.Authority); err != nil {
		return out, err
	}
	if out.Address, err = optionalKey("auction_house.address", c.Address); err != nil {
		return out, err
	}
	if out.Address.IsZero() {
		if out.Authority.IsZero() {
			return out, fmt.Errorf("config: auction_house: address or authority must be set")
		}
		if out.Address, _, err = gate.AuctionHouseAddress(out.Authority, out.TreasuryMint); err != nil {
			return out, fmt.Errorf("config: derive auction house: %w", err)
		}
	}
	if out.FeeAccount, err = optionalKey("auction_house.fee_account", c.FeeAccount); err != nil {
		return out, err
	}
	if out.FeeAccount.IsZero() {
		if out.FeeAccount, _, err = gate.FeeAccountAddress(out.Address); err != nil {
			return out, fmt.Errorf("config: derive fee account: %w", err)
		}
	}
	if out.TreasuryAccount, err = optionalKey("auction_house.treasury_account", c.TreasuryAccount); err != nil {
		return out, err
	}
	if out.TreasuryAccount.IsZero() {
		if out.TreasuryAccount, _, err = gate.TreasuryAddress(out.Address); err != nil {
			return out, fmt.Errorf("config: derive treasury account: %w", err)
		}
	}
	return out, nil
}

func optionalKey(name, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, nil
	}
	k, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config: %s: %w", name, err)
	}
	return k, nil
}
