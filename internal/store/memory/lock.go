package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// LockManager implements domain.LockManager within one process.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]heldLock
}

type heldLock struct {
	token   string
	expires time.Time
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]heldLock)}
}

// Acquire takes key for ttl. It fails with domain.ErrLockHeld while another
// holder's lease is live. The returned unlock only releases the caller's own
// lease.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	now := time.Now()
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[key]; ok && now.Before(held.expires) {
		return nil, fmt.Errorf("memory: lock %q: %w", key, domain.ErrLockHeld)
	}
	m.locks[key] = heldLock{token: token, expires: now.Add(ttl)}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if held, ok := m.locks[key]; ok && held.token == token {
			delete(m.locks, key)
		}
	}, nil
}
