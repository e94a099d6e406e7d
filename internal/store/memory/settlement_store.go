package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// SettlementStore implements domain.SettlementStore.
type SettlementStore struct {
	mu   sync.RWMutex
	rows []domain.Settlement
}

var _ domain.SettlementStore = (*SettlementStore)(nil)

// NewSettlementStore creates an empty SettlementStore.
func NewSettlementStore() *SettlementStore {
	return &SettlementStore{}
}

// Insert stores a settlement receipt. A listing settles at most once.
func (s *SettlementStore) Insert(_ context.Context, st domain.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Listing.Equals(st.Listing) {
			return fmt.Errorf("memory: insert settlement %s: %w", st.Listing, domain.ErrAlreadyExists)
		}
	}
	st.Creators = append([]domain.CreatorPayout(nil), st.Creators...)
	s.rows = append(s.rows, st)
	return nil
}

// GetByListing returns the receipt of listing.
func (s *SettlementStore) GetByListing(_ context.Context, listing solana.PublicKey) (domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.Listing.Equals(listing) {
			return row, nil
		}
	}
	return domain.Settlement{}, fmt.Errorf("memory: settlement %s: %w", listing, domain.ErrNotFound)
}

// ListRecent returns receipts newest first.
func (s *SettlementStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	s.mu.RLock()
	out := make([]domain.Settlement, 0, len(s.rows))
	for _, row := range s.rows {
		if opts.Since != nil && row.SettledAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && !row.SettledAt.Before(*opts.Until) {
			continue
		}
		out = append(out, row)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].SettledAt.After(out[j].SettledAt) })
	return page(out, opts), nil
}

// ListBefore returns receipts settled before the cutoff, oldest first.
func (s *SettlementStore) ListBefore(_ context.Context, before time.Time) ([]domain.Settlement, error) {
	s.mu.RLock()
	out := make([]domain.Settlement, 0)
	for _, row := range s.rows {
		if row.SettledAt.Before(before) {
			out = append(out, row)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].SettledAt.Before(out[j].SettledAt) })
	return out, nil
}
