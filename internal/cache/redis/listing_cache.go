package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// listingTTL bounds how stale a cached read may be if an invalidation is lost.
const listingTTL = 30 * time.Second

// ListingCache implements domain.ListingCache. Entries hold the encoded
// listing record under listing:{address}.
type ListingCache struct {
	client *Client
	ttl    time.Duration
}

var _ domain.ListingCache = (*ListingCache)(nil)

// NewListingCache creates a ListingCache; a zero ttl uses the default.
func NewListingCache(c *Client, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = listingTTL
	}
	return &ListingCache{client: c, ttl: ttl}
}

// Set caches the listing.
func (lc *ListingCache) Set(ctx context.Context, l domain.ListingConfig) error {
	data, err := domain.EncodeListingConfig(l)
	if err != nil {
		return fmt.Errorf("redis: encode listing %s: %w", l.Address, err)
	}
	if err := lc.client.rdb.Set(ctx, lc.client.key("listing", l.Address.String()), data, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set listing %s: %w", l.Address, err)
	}
	return nil
}

// Get returns the cached listing or domain.ErrNotFound on a miss.
func (lc *ListingCache) Get(ctx context.Context, address solana.PublicKey) (domain.ListingConfig, error) {
	data, err := lc.client.rdb.Get(ctx, lc.client.key("listing", address.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ListingConfig{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("redis: get listing %s: %w", address, err)
	}
	l, err := domain.DecodeListingConfig(address, data)
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("redis: decode listing %s: %w", address, err)
	}
	return l, nil
}

// Invalidate drops the cached entry.
func (lc *ListingCache) Invalidate(ctx context.Context, address solana.PublicKey) error {
	if err := lc.client.rdb.Del(ctx, lc.client.key("listing", address.String())).Err(); err != nil {
		return fmt.Errorf("redis: invalidate listing %s: %w", address, err)
	}
	return nil
}
