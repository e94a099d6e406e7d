// Package auctioneer implements the listing state machine: Sell, Bid, Cancel
// and ExecuteSale over a single persisted record per listing.
//
// Handlers validate every precondition before any delegated call and persist
// the listing record last. They assume exclusive access to the listing for
// the duration of one call; callers serialize per listing.
package auctioneer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/authority"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Engine runs the four listing operations for one auction house.
type Engine struct {
	gate      *authority.Gate
	custodian domain.EscrowCustodian
	listings  domain.ListingStore
	house     domain.AuctionHouse
	logger    *slog.Logger
}

// NewEngine creates an Engine delegating into custodian on behalf of house.
func NewEngine(
	gate *authority.Gate,
	custodian domain.EscrowCustodian,
	listings domain.ListingStore,
	house domain.AuctionHouse,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		gate:      gate,
		custodian: custodian,
		listings:  listings,
		house:     house,
		logger:    logger.With(slog.String("component", "auctioneer")),
	}
}

// House returns the auction house the engine serves.
func (e *Engine) House() domain.AuctionHouse { return e.house }

// Gate returns the engine's authority gate.
func (e *Engine) Gate() *authority.Gate { return e.gate }

// Listing loads an open listing; domain.ErrNotFound once it is closed.
func (e *Engine) Listing(ctx context.Context, address solana.PublicKey) (domain.ListingConfig, error) {
	l, err := e.listings.Get(ctx, address)
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("auctioneer: load listing %s: %w", address, err)
	}
	return l, nil
}

// ListingAddress derives where seller's listing of asset lives. A zero
// treasury mint means the house's.
func (e *Engine) ListingAddress(seller solana.PublicKey, asset domain.AssetRef) (solana.PublicKey, error) {
	if asset.TreasuryMint.IsZero() {
		asset.TreasuryMint = e.house.TreasuryMint
	}
	addr, _, err := e.gate.ListingAddress(seller, e.house.Address, asset)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("auctioneer: derive listing: %w", err)
	}
	return addr, nil
}

// Now reads the custodian clock.
func (e *Engine) Now(ctx context.Context) (int64, error) {
	now, err := e.custodian.CurrentTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("auctioneer: clock: %w", err)
	}
	return now, nil
}

// delegate builds the per-call capability and reads the custodian clock.
func (e *Engine) delegate(ctx context.Context) (*authority.Delegation, int64, error) {
	d, err := e.gate.Delegate(e.house.Address, e.custodian)
	if err != nil {
		return nil, 0, fmt.Errorf("auctioneer: delegate: %w", err)
	}
	now, err := d.CurrentTime(ctx)
	if err != nil {
		return nil, 0, err
	}
	return d, now, nil
}

func (e *Engine) custody() (solana.PublicKey, error) {
	pas, _, err := e.gate.ProgramAsSigner()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("auctioneer: derive program signer: %w", err)
	}
	return pas, nil
}

// undo collects compensating calls for delegated effects that already
// happened when a later step fails.
type undo []func(ctx context.Context) error

func (u *undo) push(fn func(ctx context.Context) error) { *u = append(*u, fn) }

// run executes the compensations in reverse and joins their errors onto
// cause.
func (u undo) run(ctx context.Context, logger *slog.Logger, cause error) error {
	errs := []error{cause}
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			logger.ErrorContext(ctx, "compensation failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
