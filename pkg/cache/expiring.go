package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Defaults used by the data layer
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 50
)

type expiringEntry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Expiring is a cache whose entries are valid for a fixed TTL after they were
// stored. Expired entries are removed lazily on lookup. When an insert pushes
// the size past maxSize the oldest-inserted entry is evicted; overwriting a
// key refreshes its timestamp but keeps its insertion position.
type Expiring[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front = oldest insertion
	now     Clock
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

var _ Cache[int] = (*Expiring[int])(nil)

// NewExpiring creates an expiring cache. Non-positive ttl or maxSize fall back
// to DefaultTTL and DefaultMaxSize.
func NewExpiring[V any](ttl time.Duration, maxSize int, options ...Option[V]) (*Expiring[V], error) {
	opts := applyOptions(options...)

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewExpiring", "metrics registration")
		}
	}

	return &Expiring[V]{
		ttl:     ttl,
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     opts.clock,
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

// TTL returns the configured entry lifetime
func (c *Expiring[V]) TTL() time.Duration {
	return c.ttl
}

// MaxSize returns the configured entry ceiling
func (c *Expiring[V]) MaxSize() int {
	return c.maxSize
}

// Get returns the value stored under key if it is still within its TTL.
func (c *Expiring[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, exists := c.items[key]
	if !exists {
		c.recordMiss()
		return zero, false
	}

	entry := element.Value.(*expiringEntry[V])
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.removeElement(element, true)
		c.recordMiss()
		return zero, false
	}

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return entry.value, true
}

// Set stores value under key, evicting the oldest insertion when over capacity.
func (c *Expiring[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Set()
	if c.metrics != nil {
		c.metrics.recordSet()
	}

	now := c.now()
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*expiringEntry[V])
		entry.value = value
		entry.storedAt = now
		return false, nil
	}

	c.items[key] = c.order.PushBack(&expiringEntry[V]{key: key, value: value, storedAt: now})

	if c.order.Len() > c.maxSize {
		c.removeElement(c.order.Front(), true)
	}

	c.updateSize()
	return true, nil
}

// Delete removes key if present.
func (c *Expiring[V]) Delete(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false, nil
	}
	c.removeElement(element, false)
	c.recordDelete()
	return true, nil
}

// DeleteFunc removes every entry whose key satisfies pred.
func (c *Expiring[V]) DeleteFunc(pred func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		if pred(element.Value.(*expiringEntry[V]).key) {
			c.removeElement(element, false)
			c.recordDelete()
			removed++
		}
		element = next
	}
	return removed
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *Expiring[V]) DeletePrefix(prefix string) int {
	return c.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Clear removes all entries.
func (c *Expiring[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.updateSize()
	return nil
}

// Size returns the number of stored entries, including ones that expired but
// have not been looked up since.
func (c *Expiring[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns stored keys, oldest insertion first.
func (c *Expiring[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*expiringEntry[V]).key)
	}
	return keys
}

// Stats returns the cache statistics.
func (c *Expiring[V]) Stats() *Statistics {
	return c.stats
}

// Close clears the cache.
func (c *Expiring[V]) Close() error {
	return c.Clear()
}

// removeElement must be called with c.mu held.
func (c *Expiring[V]) removeElement(element *list.Element, evicted bool) {
	entry := c.order.Remove(element).(*expiringEntry[V])
	delete(c.items, entry.key)

	if evicted {
		c.stats.Eviction()
		if c.metrics != nil {
			c.metrics.recordEviction()
		}
		if c.evictFn != nil {
			c.evictFn(entry.key, entry.value)
		}
	}
	c.updateSize()
}

func (c *Expiring[V]) recordMiss() {
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
}

func (c *Expiring[V]) recordDelete() {
	c.stats.Delete()
	if c.metrics != nil {
		c.metrics.recordDelete()
	}
}

func (c *Expiring[V]) updateSize() {
	size := c.order.Len()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.updateSize(size)
	}
}
