package cooldown

import (
	"context"
	"sync"
	"time"
)

// Store gates alert firings. TryAcquire is the atomic check-then-fire step:
// it returns true and records the firing time only when the alert's last
// recorded firing is outside the cooldown window. Two concurrent
// evaluations of the same alert id see at most one true result. Release
// gives a claim back when the firing could not be recorded, so a transient
// store failure does not consume the window.
type Store interface {
	TryAcquire(ctx context.Context, alertID string, cooldown time.Duration, now time.Time) (bool, error)
	Release(ctx context.Context, alertID string) error
}

// MemoryStore is a single-process Store guarded by a mutex. Suitable for
// one scheduler instance and for tests; multi-instance deployments should
// use the Redis store.
type MemoryStore struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastFired: make(map[string]time.Time)}
}

func (s *MemoryStore) TryAcquire(_ context.Context, alertID string, cooldown time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastFired[alertID]
	if ok && now.Sub(last) < cooldown {
		return false, nil
	}
	s.lastFired[alertID] = now
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lastFired, alertID)
	return nil
}
