package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// SetTime sets the logical clock.
func (l *Ledger) SetTime(unix int64) {
	l.mu.Lock()
	l.now = unix
	l.mu.Unlock()
}

// Advance moves the logical clock forward by seconds.
func (l *Ledger) Advance(seconds int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now += seconds
	return l.now
}

// Airdrop credits lamports to wallet.
func (l *Ledger) Airdrop(wallet solana.PublicKey, amount uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lamports[wallet] += amount
	return l.lamports[wallet]
}

// MintAsset registers md and credits amount units of md.Mint to owner. It
// returns the owner's token account for the mint.
func (l *Ledger) MintAsset(owner solana.PublicKey, md domain.AssetMetadata, amount uint64) (solana.PublicKey, error) {
	var shares int
	for _, c := range md.Creators {
		shares += int(c.Share)
	}
	if len(md.Creators) > 0 && shares != 100 {
		return solana.PublicKey{}, fmt.Errorf("ledger: mint %s: %w", md.Mint, domain.ErrInvalidCreatorShares)
	}
	if md.TokenStandard == domain.TokenStandardProgrammableNonFungible && md.RuleSet == nil {
		return solana.PublicKey{}, fmt.Errorf("ledger: mint %s: programmable asset needs a rule set", md.Mint)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, md.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("ledger: mint %s: derive token account: %w", md.Mint, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	md.Creators = append([]domain.Creator(nil), md.Creators...)
	l.metadata[md.Mint] = md
	l.accounts[ata] = holding{owner: owner, mint: md.Mint}
	l.tokens[holding{owner: owner, mint: md.Mint}] += amount
	return ata, nil
}

// Withdraw returns escrowed lamports that no longer back an open bid to the
// wallet, for example after the seller withdrew the listing.
func (l *Ledger) Withdraw(ctx context.Context, house, wallet solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var committed uint64
	for _, tr := range l.records {
		if tr.AuctionHouse.Equals(house) && tr.Wallet.Equals(wallet) && !tr.IsSellerClaim() {
			committed += tr.Price
		}
	}
	key := escrowKey{house: house, wallet: wallet}
	free := uint64(0)
	if l.escrow[key] > committed {
		free = l.escrow[key] - committed
	}
	if amount > free {
		return fmt.Errorf("ledger: withdraw: %w: %d free, %d requested", domain.ErrInsufficientFunds, free, amount)
	}
	l.escrow[key] -= amount
	l.lamports[wallet] += amount
	l.logger.InfoContext(ctx, "escrow withdrawn",
		slog.String("house", house.String()),
		slog.String("wallet", wallet.String()),
		slog.Uint64("amount", amount),
	)
	return nil
}

// CloseOrphanedRecord removes wallet's trade record once the listing it bid
// on is gone, returning its price to the free escrow balance.
func (l *Ledger) CloseOrphanedRecord(wallet, ref solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tr, ok := l.records[ref]
	if !ok {
		return fmt.Errorf("ledger: trade record %s: %w", ref, domain.ErrNotFound)
	}
	if !tr.Wallet.Equals(wallet) {
		return fmt.Errorf("ledger: trade record %s: %w", ref, domain.ErrUnauthorized)
	}
	delete(l.records, ref)
	return nil
}

// Balance returns wallet's lamport balance.
func (l *Ledger) Balance(wallet solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lamports[wallet]
}

// Escrow returns wallet's escrowed lamports at house.
func (l *Ledger) Escrow(house, wallet solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow[escrowKey{house: house, wallet: wallet}]
}

// TokenBalance returns how many units of mint owner holds.
func (l *Ledger) TokenBalance(owner, mint solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[holding{owner: owner, mint: mint}]
}
