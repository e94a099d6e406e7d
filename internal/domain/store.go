package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore persists open listings keyed by their derived address. A
// listing is closed exactly when Get returns ErrNotFound.
type ListingStore interface {
	// Create inserts a new listing; ErrAlreadyExists if the address is taken.
	Create(ctx context.Context, listing ListingConfig) error
	// Update overwrites an existing listing; ErrNotFound if it is closed.
	Update(ctx context.Context, listing ListingConfig) error
	Get(ctx context.Context, address solana.PublicKey) (ListingConfig, error)
	// Delete destroys a listing; ErrNotFound if it was already closed.
	Delete(ctx context.Context, address solana.PublicKey) error
	ListOpen(ctx context.Context, house solana.PublicKey, opts ListOpts) ([]ListingConfig, error)
}

// SettlementStore persists settlement receipts.
type SettlementStore interface {
	Insert(ctx context.Context, s Settlement) error
	GetByListing(ctx context.Context, listing solana.PublicKey) (Settlement, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Settlement, error)
	ListBefore(ctx context.Context, before time.Time) ([]Settlement, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
