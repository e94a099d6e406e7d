package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Genesis seeds a fresh ledger with wallet balances and minted assets.
type Genesis struct {
	Time    int64           `yaml:"time"`
	Wallets []GenesisWallet `yaml:"wallets"`
	Assets  []GenesisAsset  `yaml:"assets"`
}

// GenesisWallet credits lamports to one wallet.
type GenesisWallet struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

// GenesisAsset mints one asset to its owner.
type GenesisAsset struct {
	Mint                 string           `yaml:"mint"`
	Owner                string           `yaml:"owner"`
	Amount               uint64           `yaml:"amount"`
	SellerFeeBasisPoints uint16           `yaml:"seller_fee_basis_points"`
	TokenStandard        string           `yaml:"token_standard"`
	RuleSet              string           `yaml:"rule_set"`
	Creators             []GenesisCreator `yaml:"creators"`
}

// GenesisCreator is one royalty recipient.
type GenesisCreator struct {
	Address string `yaml:"address"`
	Share   uint8  `yaml:"share"`
}

// LoadGenesisFile reads a YAML genesis document from path.
func LoadGenesisFile(path string) (Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("ledger: open genesis: %w", err)
	}
	defer f.Close()
	return LoadGenesis(f)
}

// LoadGenesis decodes a YAML genesis document.
func LoadGenesis(r io.Reader) (Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && err != io.EOF {
		return Genesis{}, fmt.Errorf("ledger: decode genesis: %w", err)
	}
	return g, nil
}

// ApplyGenesis credits every wallet and mints every asset in g.
func (l *Ledger) ApplyGenesis(g Genesis) error {
	if g.Time > 0 {
		l.SetTime(g.Time)
	}
	for i, w := range g.Wallets {
		addr, err := solana.PublicKeyFromBase58(w.Address)
		if err != nil {
			return fmt.Errorf("ledger: genesis wallet %d: %w", i, err)
		}
		l.Airdrop(addr, w.Lamports)
	}
	for i, a := range g.Assets {
		md, owner, err := a.metadata()
		if err != nil {
			return fmt.Errorf("ledger: genesis asset %d: %w", i, err)
		}
		amount := a.Amount
		if amount == 0 {
			amount = 1
		}
		if _, err := l.MintAsset(owner, md, amount); err != nil {
			return fmt.Errorf("ledger: genesis asset %d: %w", i, err)
		}
	}
	l.logger.Info("genesis applied",
		slog.Int("wallets", len(g.Wallets)),
		slog.Int("assets", len(g.Assets)),
	)
	return nil
}

func (a GenesisAsset) metadata() (domain.AssetMetadata, solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(a.Mint)
	if err != nil {
		return domain.AssetMetadata{}, solana.PublicKey{}, fmt.Errorf("mint: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(a.Owner)
	if err != nil {
		return domain.AssetMetadata{}, solana.PublicKey{}, fmt.Errorf("owner: %w", err)
	}
	md := domain.AssetMetadata{Mint: mint, SellerFeeBasisPoints: a.SellerFeeBasisPoints}
	switch a.TokenStandard {
	case "", domain.TokenStandardNonFungible.String():
		md.TokenStandard = domain.TokenStandardNonFungible
	case domain.TokenStandardProgrammableNonFungible.String():
		md.TokenStandard = domain.TokenStandardProgrammableNonFungible
	default:
		return domain.AssetMetadata{}, solana.PublicKey{}, fmt.Errorf("unknown token standard %q", a.TokenStandard)
	}
	if a.RuleSet != "" {
		rs, err := solana.PublicKeyFromBase58(a.RuleSet)
		if err != nil {
			return domain.AssetMetadata{}, solana.PublicKey{}, fmt.Errorf("rule set: %w", err)
		}
		md.RuleSet = &rs
	}
	for _, c := range a.Creators {
		addr, err := solana.PublicKeyFromBase58(c.Address)
		if err != nil {
			return domain.AssetMetadata{}, solana.PublicKey{}, fmt.Errorf("creator: %w", err)
		}
		md.Creators = append(md.Creators, domain.Creator{Address: addr, Share: c.Share})
	}
	return md, owner, nil
}
