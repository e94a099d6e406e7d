package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// unlockLua deletes the lock only while it still carries the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and a
// token-checked unlock. Listing operations hold it for their whole
// read-modify-write cycle.
type LockManager struct {
	client   *Client
	unlockSc *redis.Script
	logger   *slog.Logger
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager backed by the given Client. Failed
// unlocks are logged to logger; the key then lapses with its TTL.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		client:   c,
		unlockSc: redis.NewScript(unlockLua),
		logger:   logger.With(slog.String("component", "redis-lock")),
	}
}

// Acquire takes key for ttl or fails with domain.ErrLockHeld. The returned
// unlock is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.client.key("lock", key)

	ok, err := lm.client.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		lm.release(key, lk, token)
	}, nil
}

func (lm *LockManager) release(key, lk, token string) {
	// The caller's context may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lm.unlockSc.Run(ctx, lm.client.rdb, []string{lk}, token).Err(); err != nil {
		lm.logger.Warn("unlock failed, lock held until ttl",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
