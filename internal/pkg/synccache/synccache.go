package synccache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ledgerlink/ledgerlink/internal/pkg/billing"
	"github.com/redis/go-redis/v9"
)

// DefaultFreshness is how long a reconciliation result suppresses
// re-fetching from the external services.
const DefaultFreshness = 5 * time.Minute

// MemoryStore keeps sync results in-process. Suitable for a single
// instance and for tests; multi-instance deployments use RedisStore so
// the throttle is shared.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[uint]memoryEntry
	freshness time.Duration
}

type memoryEntry struct {
	result   billing.SyncResult
	storedAt time.Time
}

func NewMemoryStore(freshness time.Duration) *MemoryStore {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &MemoryStore{
		entries:   make(map[uint]memoryEntry),
		freshness: freshness,
	}
}

func (s *MemoryStore) Get(_ context.Context, customerID uint) (*billing.SyncResult, bool) {
	s.mu.RLock()
	entry, ok := s.entries[customerID]
	s.mu.RUnlock()
	if !ok || time.Since(entry.storedAt) > s.freshness {
		return nil, false
	}
	result := entry.result
	return &result, true
}

func (s *MemoryStore) Set(_ context.Context, customerID uint, result *billing.SyncResult) {
	s.mu.Lock()
	s.entries[customerID] = memoryEntry{result: *result, storedAt: time.Now()}
	s.mu.Unlock()
}

// RedisStore shares the sync throttle across instances. Cache failures
// degrade to a miss: reconciliation then simply runs again.
type RedisStore struct {
	client    *redis.Client
	freshness time.Duration
}

func NewRedisStore(client *redis.Client, freshness time.Duration) *RedisStore {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &RedisStore{client: client, freshness: freshness}
}

func syncKey(customerID uint) string {
	return fmt.Sprintf("sync:customer:%d", customerID)
}

func (s *RedisStore) Get(ctx context.Context, customerID uint) (*billing.SyncResult, bool) {
	raw, err := s.client.Get(ctx, syncKey(customerID)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warnf("[SyncCache] read failed for customer %d: %v", customerID, err)
		return nil, false
	}

	var result billing.SyncResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warnf("[SyncCache] corrupt entry for customer %d, dropping: %v", customerID, err)
		_ = s.client.Del(ctx, syncKey(customerID)).Err()
		return nil, false
	}
	return &result, true
}

func (s *RedisStore) Set(ctx context.Context, customerID uint, result *billing.SyncResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		log.Warnf("[SyncCache] marshal failed for customer %d: %v", customerID, err)
		return
	}
	if err := s.client.Set(ctx, syncKey(customerID), raw, s.freshness).Err(); err != nil {
		log.Warnf("[SyncCache] write failed for customer %d: %v", customerID, err)
	}
}
