// Package cache implements RetrievalCache: an LRU+TTL cache keyed by
// (normalized query, topK, sorted entity kinds), with an optional
// Redis-backed implementation of the same interface. The two are
// alternatives; the LRU does not fall through to Redis on a miss. Grounded on the teacher's in-process
// caching idiom (internal/skills/redis_cache.go's single-writer discipline)
// generalized to the spec's key shape and stats surface.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// Key builds the cache key from a normalized query, topK, and the sorted
// entity kinds requested.
func Key(normalizedQuery string, topK int, kinds []model.NodeKind) string {
	sorted := make([]string, len(kinds))
	for i, k := range kinds {
		sorted[i] = string(k)
	}
	sort.Strings(sorted)
	return fmt.Sprintf("%s|%d|%s", normalizedQuery, topK, strings.Join(sorted, ","))
}

// Stats reports cache hit/miss counters.
type Stats struct {
	Size    int
	Hits    int64
	Misses  int64
	HitRate float64
}

// Cache is the RetrievalCache contract.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.RetrievalResult, bool)
	Set(ctx context.Context, key string, value []model.RetrievalResult)
	Invalidate(ctx context.Context, key string)
	InvalidateExpired(ctx context.Context) int
	Stats() Stats
}

type entry struct {
	key       string
	value     []model.RetrievalResult
	createdAt time.Time
}

// LRU is an in-process LRU+TTL RetrievalCache. Safe for concurrent readers
// and writers; LRU invariants are preserved under contention via a single
// mutex guarding both the map and the ordering list.
type LRU struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	hits     int64
	misses   int64
}

// NewLRU constructs an in-process cache. ttl=0 makes every lookup miss, per
// spec's boundary behavior.
func NewLRU(maxSize int, ttl time.Duration) *LRU {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LRU{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRU) Get(_ context.Context, key string) ([]model.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok || c.ttl <= 0 {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Since(e.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return cloneResults(e.value), true
}

func (c *LRU) Set(_ context.Context, key string, value []model.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cloned := cloneResults(value)
	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = cloned
		el.Value.(*entry).createdAt = time.Now()
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry{key: key, value: cloned, createdAt: time.Now()})
	c.items[key] = el

	for c.order.Len() > c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.items, back.Value.(*entry).key)
	}
}

func (c *LRU) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *LRU) InvalidateExpired(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return 0
	}
	count := 0
	var next *list.Element
	for el := c.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if time.Since(e.createdAt) > c.ttl {
			c.order.Remove(el)
			delete(c.items, e.key)
			count++
		}
	}
	return count
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Size: c.order.Len(), Hits: c.hits, Misses: c.misses, HitRate: rate}
}

func cloneResults(in []model.RetrievalResult) []model.RetrievalResult {
	out := make([]model.RetrievalResult, len(in))
	copy(out, in)
	for i := range out {
		if in[i].Relationships != nil {
			rels := make([]model.Relationship, len(in[i].Relationships))
			copy(rels, in[i].Relationships)
			out[i].Relationships = rels
		}
		if in[i].Metadata != nil {
			md := make(map[string]any, len(in[i].Metadata))
			for k, v := range in[i].Metadata {
				md[k] = v
			}
			out[i].Metadata = md
		}
	}
	return out
}

// Redis is an optional alternative implementation of the Cache interface,
// for multi-process deployments that want to share a cache across retriever
// instances. It counts hits and misses in this process only, so Stats
// reflects only this process's view and leaves Size at 0.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewRedis constructs a Redis-backed RetrievalCache.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]model.RetrievalResult, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.misses++
		return nil, false
	}
	var out []model.RetrievalResult
	if err := json.Unmarshal(raw, &out); err != nil {
		r.misses++
		return nil, false
	}
	r.hits++
	return out, true
}

func (r *Redis) Set(ctx context.Context, key string, value []model.RetrievalResult) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	r.client.Set(ctx, key, raw, r.ttl)
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	r.client.Del(ctx, key)
}

func (r *Redis) InvalidateExpired(_ context.Context) int { return 0 }

func (r *Redis) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.hits + r.misses
	rate := 0.0
	if total > 0 {
		rate = float64(r.hits) / float64(total)
	}
	return Stats{Hits: r.hits, Misses: r.misses, HitRate: rate}
}
