package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ListingCache provides fast read access to open listings. It is never the
// source of truth for state-machine decisions.
type ListingCache interface {
	Set(ctx context.Context, listing ListingConfig) error
	Get(ctx context.Context, address solana.PublicKey) (ListingConfig, error)
	Invalidate(ctx context.Context, address solana.PublicKey) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
