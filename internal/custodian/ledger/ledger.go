// Package ledger is an in-process escrow custodian. It keeps lamport
// balances, per-house escrow, token holdings and trade records in memory and
// accepts calls only from the auctioneer authority registered for a house.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

type escrowKey struct {
	house  solana.PublicKey
	wallet solana.PublicKey
}

type holding struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

// Ledger implements domain.EscrowCustodian.
type Ledger struct {
	gate   *authority.Gate
	logger *slog.Logger

	mu        sync.Mutex
	now       int64
	source    TimeSource
	delegates map[solana.PublicKey]domain.Authority
	lamports  map[solana.PublicKey]uint64
	escrow    map[escrowKey]uint64
	tokens    map[holding]uint64
	accounts  map[solana.PublicKey]holding
	records   map[solana.PublicKey]domain.TradeRecord
	metadata  map[solana.PublicKey]domain.AssetMetadata
}

var _ domain.EscrowCustodian = (*Ledger)(nil)

// New creates an empty ledger whose clock starts at the wall-clock time.
func New(gate *authority.Gate, logger *slog.Logger) *Ledger {
	return &Ledger{
		gate:      gate,
		logger:    logger.With(slog.String("component", "ledger")),
		now:       time.Now().Unix(),
		delegates: make(map[solana.PublicKey]domain.Authority),
		lamports:  make(map[solana.PublicKey]uint64),
		escrow:    make(map[escrowKey]uint64),
		tokens:    make(map[holding]uint64),
		accounts:  make(map[solana.PublicKey]holding),
		records:   make(map[solana.PublicKey]domain.TradeRecord),
		metadata:  make(map[solana.PublicKey]domain.AssetMetadata),
	}
}

// RegisterDelegate approves the auctioneer authority of house. Calls signed
// by any other identity are rejected.
func (l *Ledger) RegisterDelegate(house solana.PublicKey) (domain.Authority, error) {
	auth, err := l.gate.Authority(house)
	if err != nil {
		return domain.Authority{}, fmt.Errorf("ledger: register delegate: %w", err)
	}
	l.mu.Lock()
	l.delegates[house] = auth
	l.mu.Unlock()
	l.logger.Info("auctioneer delegate registered",
		slog.String("house", house.String()),
		slog.String("authority", auth.Address.String()),
	)
	return auth, nil
}

func (l *Ledger) checkAuthority(auth domain.Authority) error {
	registered, ok := l.delegates[auth.AuctionHouse]
	if !ok {
		return fmt.Errorf("%w: no delegate for house %s", domain.ErrInvalidAuthority, auth.AuctionHouse)
	}
	if registered != auth {
		return fmt.Errorf("%w: %s is not the delegate of %s", domain.ErrInvalidAuthority, auth.Address, auth.AuctionHouse)
	}
	return l.gate.Verify(auth)
}

// OpenTradeRecord creates party's trade record, or returns the existing one
// at the same derived address with created=false.
func (l *Ledger) OpenTradeRecord(_ context.Context, auth domain.Authority, party solana.PublicKey, asset domain.AssetRef, price uint64) (domain.TradeRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkAuthority(auth); err != nil {
		return domain.TradeRecord{}, false, err
	}
	if asset.TokenSize == 0 {
		return domain.TradeRecord{}, false, fmt.Errorf("%w: zero size", domain.ErrAssetMismatch)
	}
	addr, bump, err := l.gate.TradeStateAddress(party, auth.AuctionHouse, asset, price)
	if err != nil {
		return domain.TradeRecord{}, false, fmt.Errorf("ledger: derive trade state: %w", err)
	}
	if tr, ok := l.records[addr]; ok {
		return tr, false, nil
	}
	tr := domain.TradeRecord{
		Address:      addr,
		Bump:         bump,
		Wallet:       party,
		AuctionHouse: auth.AuctionHouse,
		Asset:        asset,
		Price:        price,
	}
	l.records[addr] = tr
	return tr, true, nil
}

// CloseTradeRecord removes a trade record.
func (l *Ledger) CloseTradeRecord(_ context.Context, auth domain.Authority, ref solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkAuthority(auth); err != nil {
		return err
	}
	tr, ok := l.records[ref]
	if !ok {
		return fmt.Errorf("trade record %s: %w", ref, domain.ErrNotFound)
	}
	if !tr.AuctionHouse.Equals(auth.AuctionHouse) {
		return fmt.Errorf("%w: record belongs to %s", domain.ErrInvalidAuthority, tr.AuctionHouse)
	}
	delete(l.records, ref)
	return nil
}

// TradeRecord reads a trade record.
func (l *Ledger) TradeRecord(_ context.Context, ref solana.PublicKey) (domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tr, ok := l.records[ref]
	if !ok {
		return domain.TradeRecord{}, fmt.Errorf("trade record %s: %w", ref, domain.ErrNotFound)
	}
	return tr, nil
}

// LockFunds moves amount from party's wallet into its escrow at the house.
func (l *Ledger) LockFunds(_ context.Context, auth domain.Authority, party solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkAuthority(auth); err != nil {
		return err
	}
	if l.lamports[party] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", domain.ErrInsufficientFunds, party, l.lamports[party], amount)
	}
	l.lamports[party] -= amount
	l.escrow[escrowKey{house: auth.AuctionHouse, wallet: party}] += amount
	return nil
}

// ReleaseFunds pays splits out of the escrow of ref's wallet. Nothing moves
// unless every split can be paid.
func (l *Ledger) ReleaseFunds(_ context.Context, auth domain.Authority, ref solana.PublicKey, splits []domain.Split) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkAuthority(auth); err != nil {
		return err
	}
	tr, ok := l.records[ref]
	if !ok {
		return fmt.Errorf("trade record %s: %w", ref, domain.ErrNotFound)
	}
	key := escrowKey{house: tr.AuctionHouse, wallet: tr.Wallet}

	var total uint64
	for _, s := range splits {
		if total+s.Amount < total {
			return fmt.Errorf("%w: split total overflows", domain.ErrInsufficientFunds)
		}
		total += s.Amount
	}
	if l.escrow[key] < total {
		return fmt.Errorf("%w: escrow %d, release %d", domain.ErrInsufficientFunds, l.escrow[key], total)
	}
	l.escrow[key] -= total
	for _, s := range splits {
		l.lamports[s.Destination] += s.Amount
	}
	return nil
}

// TransferAsset moves asset.TokenSize units of the asset from one owner to
// another. Programmable assets require a payload naming their rule set.
func (l *Ledger) TransferAsset(_ context.Context, auth domain.Authority, from, to solana.PublicKey, asset domain.AssetRef, payload *domain.AuthorizationPayload) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkAuthority(auth); err != nil {
		return err
	}
	acct, ok := l.accounts[asset.TokenAccount]
	if !ok || !acct.mint.Equals(asset.TokenMint) {
		return fmt.Errorf("%w: token account %s does not hold %s", domain.ErrAssetMismatch, asset.TokenAccount, asset.TokenMint)
	}
	md, ok := l.metadata[asset.TokenMint]
	if !ok {
		return fmt.Errorf("metadata %s: %w", asset.TokenMint, domain.ErrNotFound)
	}
	if err := checkTransferRules(md, payload); err != nil {
		return err
	}

	src := holding{owner: from, mint: asset.TokenMint}
	if l.tokens[src] < asset.TokenSize {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", domain.ErrInsufficientFunds, from, l.tokens[src], asset.TokenMint, asset.TokenSize)
	}
	l.tokens[src] -= asset.TokenSize
	l.tokens[holding{owner: to, mint: asset.TokenMint}] += asset.TokenSize
	return nil
}

func checkTransferRules(md domain.AssetMetadata, payload *domain.AuthorizationPayload) error {
	if md.TokenStandard != domain.TokenStandardProgrammableNonFungible {
		if payload != nil {
			return fmt.Errorf("%w: authorization payload for %s asset", domain.ErrAssetMismatch, md.TokenStandard)
		}
		return nil
	}
	if payload == nil || md.RuleSet == nil {
		return fmt.Errorf("%w: missing authorization payload", domain.ErrTransferRejected)
	}
	if !payload.RuleSet.Equals(*md.RuleSet) {
		return fmt.Errorf("%w: rule set %s, want %s", domain.ErrTransferRejected, payload.RuleSet, *md.RuleSet)
	}
	return nil
}

// AssetMetadata returns royalty and transfer-rule data for mint.
func (l *Ledger) AssetMetadata(_ context.Context, mint solana.PublicKey) (domain.AssetMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	md, ok := l.metadata[mint]
	if !ok {
		return domain.AssetMetadata{}, fmt.Errorf("metadata %s: %w", mint, domain.ErrNotFound)
	}
	md.Creators = append([]domain.Creator(nil), md.Creators...)
	return md, nil
}

// CurrentTime returns the ledger's time in unix seconds: the attached time
// source when there is one, the logical clock otherwise.
func (l *Ledger) CurrentTime(ctx context.Context) (int64, error) {
	l.mu.Lock()
	src, now := l.source, l.now
	l.mu.Unlock()
	if src == nil {
		return now, nil
	}
	t, err := src.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: read time source: %w", err)
	}
	return t, nil
}
