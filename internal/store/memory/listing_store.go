// Package memory implements the domain stores in process memory. Records are
// kept in their encoded form so every read returns an independent copy.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingStore implements domain.ListingStore.
type ListingStore struct {
	mu      sync.RWMutex
	records map[solana.PublicKey][]byte
}

var _ domain.ListingStore = (*ListingStore)(nil)

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{records: make(map[solana.PublicKey][]byte)}
}

// Create inserts a new listing.
func (s *ListingStore) Create(_ context.Context, listing domain.ListingConfig) error {
	data, err := domain.EncodeListingConfig(listing)
	if err != nil {
		return fmt.Errorf("memory: create listing: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[listing.Address]; ok {
		return fmt.Errorf("memory: create listing %s: %w", listing.Address, domain.ErrAlreadyExists)
	}
	s.records[listing.Address] = data
	return nil
}

// Update overwrites an open listing.
func (s *ListingStore) Update(_ context.Context, listing domain.ListingConfig) error {
	data, err := domain.EncodeListingConfig(listing)
	if err != nil {
		return fmt.Errorf("memory: update listing: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[listing.Address]; !ok {
		return fmt.Errorf("memory: update listing %s: %w", listing.Address, domain.ErrNotFound)
	}
	s.records[listing.Address] = data
	return nil
}

// Get returns the listing at address.
func (s *ListingStore) Get(_ context.Context, address solana.PublicKey) (domain.ListingConfig, error) {
	s.mu.RLock()
	data, ok := s.records[address]
	s.mu.RUnlock()
	if !ok {
		return domain.ListingConfig{}, fmt.Errorf("memory: get listing %s: %w", address, domain.ErrNotFound)
	}
	l, err := domain.DecodeListingConfig(address, data)
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("memory: get listing %s: %w", address, err)
	}
	return l, nil
}

// Delete removes the listing at address.
func (s *ListingStore) Delete(_ context.Context, address solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[address]; !ok {
		return fmt.Errorf("memory: delete listing %s: %w", address, domain.ErrNotFound)
	}
	delete(s.records, address)
	return nil
}

// ListOpen returns open listings of house ordered by end time.
func (s *ListingStore) ListOpen(_ context.Context, house solana.PublicKey, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	s.mu.RLock()
	out := make([]domain.ListingConfig, 0, len(s.records))
	for addr, data := range s.records {
		l, err := domain.DecodeListingConfig(addr, data)
		if err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("memory: list listings: %w", err)
		}
		if house.IsZero() || l.AuctionHouse.Equals(house) {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime != out[j].EndTime {
			return out[i].EndTime < out[j].EndTime
		}
		return out[i].Address.String() < out[j].Address.String()
	})
	return page(out, opts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
