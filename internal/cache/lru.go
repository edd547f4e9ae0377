// Package cache provides caching implementations for downpay.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/downpay/internal/domain"
)

// LRUCache is a thread-safe, size-bounded cache whose entries also expire.
// Used as the standalone cache and as L1 in two-phase caching.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	stats    Stats
	now      func() time.Time
}

// Stats reports cache occupancy and effectiveness.
type Stats struct {
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewLRUCache creates an LRU cache holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key, or nil when absent or expired.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	k, err := tenantKey(tenantID, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[k]
	if !ok {
		c.stats.Misses++
		return nil, nil
	}

	entry := elem.Value.(*lruEntry)
	if entry.expired(c.now()) {
		c.unlink(elem)
		c.stats.Misses++
		return nil, nil
	}

	c.recency.MoveToFront(elem)
	c.stats.Hits++
	return entry.value, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	k, err := tenantKey(tenantID, key)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[k]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.recency.MoveToFront(elem)
		return nil
	}

	c.entries[k] = c.recency.PushFront(&lruEntry{key: k, value: value, expiresAt: expiresAt})

	for c.recency.Len() > c.capacity {
		c.unlink(c.recency.Back())
		c.stats.Evictions++
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	k, err := tenantKey(tenantID, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[k]; ok {
		c.unlink(elem)
	}
	return nil
}

// GetEvaluation retrieves a cached evaluation.
func (c *LRUCache) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.Evaluation, error) {
	return getEvaluation(ctx, c, tenantID, evalID)
}

// SetEvaluation caches an evaluation.
func (c *LRUCache) SetEvaluation(ctx context.Context, tenantID string, eval *domain.Evaluation, ttl time.Duration) error {
	return setEvaluation(ctx, c, tenantID, eval, ttl)
}

// Ping always succeeds.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.recency.Init()
	return nil
}

// Stats returns a snapshot of cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.recency.Len()
	s.Capacity = c.capacity
	return s
}

func (c *LRUCache) unlink(elem *list.Element) {
	if elem == nil {
		return
	}
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*lruEntry).key)
}

func tenantKey(tenantID, key string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenantID is required")
	}
	return tenantID + ":" + key, nil
}
