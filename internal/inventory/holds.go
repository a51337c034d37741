package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/redis"
)

// HoldStore tracks soft reservation counters per product (or variant).
// Counters are additive across all in-flight checkouts and expire on
// their own, so an abandoned checkout frees its units without cleanup.
type HoldStore interface {
	Reserved(ctx context.Context, productID, variantID string) (int64, error)
	Add(ctx context.Context, productID, variantID string, qty int64, ttl time.Duration) (int64, error)
	Sub(ctx context.Context, productID, variantID string, qty int64) (int64, error)
	Clear(ctx context.Context, productID, variantID string) error
}

type redisHoldStore struct {
	client *redis.Client
}

// NewRedisHoldStore backs hold counters with Redis expiring keys.
func NewRedisHoldStore(client *redis.Client) HoldStore {
	return &redisHoldStore{client: client}
}

func (s *redisHoldStore) Reserved(ctx context.Context, productID, variantID string) (int64, error) {
	return s.client.GetInt(ctx, s.client.HoldKey(productID, variantID))
}

func (s *redisHoldStore) Add(ctx context.Context, productID, variantID string, qty int64, ttl time.Duration) (int64, error) {
	key := s.client.HoldKey(productID, variantID)
	total, err := s.client.IncrBy(ctx, key, qty)
	if err != nil {
		return 0, err
	}
	// Refresh the window on every write; the counter only needs to outlive
	// the newest pending checkout.
	if err := s.client.Expire(ctx, key, ttl); err != nil {
		return total, err
	}
	return total, nil
}

func (s *redisHoldStore) Sub(ctx context.Context, productID, variantID string, qty int64) (int64, error) {
	key := s.client.HoldKey(productID, variantID)
	total, err := s.client.DecrBy(ctx, key, qty)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		if err := s.client.Del(ctx, key); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return total, nil
}

func (s *redisHoldStore) Clear(ctx context.Context, productID, variantID string) error {
	return s.client.Del(ctx, s.client.HoldKey(productID, variantID))
}

// MemoryHoldStore is the in-process HoldStore used by tests. Entries
// honor their TTL on read.
type MemoryHoldStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{
		counts:  map[string]int64{},
		expires: map[string]time.Time{},
		now:     time.Now,
	}
}

// SetClock overrides the time source so expiry can be tested.
func (s *MemoryHoldStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryHoldStore) key(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + ":" + variantID
}

func (s *MemoryHoldStore) expireLocked(key string) {
	if deadline, ok := s.expires[key]; ok && s.now().After(deadline) {
		delete(s.counts, key)
		delete(s.expires, key)
	}
}

func (s *MemoryHoldStore) Reserved(_ context.Context, productID, variantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(productID, variantID)
	s.expireLocked(key)
	return s.counts[key], nil
}

func (s *MemoryHoldStore) Add(_ context.Context, productID, variantID string, qty int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(productID, variantID)
	s.expireLocked(key)
	s.counts[key] += qty
	s.expires[key] = s.now().Add(ttl)
	return s.counts[key], nil
}

func (s *MemoryHoldStore) Sub(_ context.Context, productID, variantID string, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(productID, variantID)
	s.expireLocked(key)
	s.counts[key] -= qty
	if s.counts[key] <= 0 {
		delete(s.counts, key)
		delete(s.expires, key)
		return 0, nil
	}
	return s.counts[key], nil
}

func (s *MemoryHoldStore) Clear(_ context.Context, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(productID, variantID)
	delete(s.counts, key)
	delete(s.expires, key)
	return nil
}
