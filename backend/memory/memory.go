// Package memory implements the in-memory cache backend: a sharded
// concurrent map with a ring-buffer TTL index, tag and dependency
// reverse indexes, and an optional bloom filter fast path.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/chronocache/chronocache/backend"
	"github.com/chronocache/chronocache/cerr"
	"github.com/chronocache/chronocache/entry"
	"github.com/rs/zerolog"
)

const shardCount = 32

// Config configures a Cache. The zero value gives an unbounded cache
// with no background reaper; DefaultConfig is the usual starting point.
type Config struct {
	// MaxCapacity is the maximum number of entries across all shards;
	// 0 means unlimited. Eviction has no ordering guarantee (Non-goal).
	MaxCapacity int
	// CleanupInterval drives the background reaper; <= 0 disables it
	// and the cache relies solely on lazy (on-Get) expiration.
	CleanupInterval time.Duration
	// MaxTTL sizes the TTL time wheel.
	MaxTTL time.Duration
	// Bloom, if non-nil, is consulted before the shard lock on Get to
	// short-circuit definite misses. Off by default.
	Bloom *Bloom
	// Logger receives Debug records of janitor reaps and capacity
	// evictions. Nil defaults to a disabled logger.
	Logger *zerolog.Logger
}

// DefaultConfig is 10k capacity, a minute cleanup interval, a 24h TTL
// ceiling.
func DefaultConfig() Config {
	nop := zerolog.Nop()
	return Config{
		MaxCapacity:     10_000,
		CleanupInterval: time.Minute,
		MaxTTL:          24 * time.Hour,
		Logger:          &nop,
	}
}

type shard struct {
	mu   sync.RWMutex
	data map[string]*entry.Entry[[]byte]
}

// Cache is the in-memory backend. It implements backend.Base,
// backend.Tagged, and backend.Dependencies.
type Cache struct {
	shards   [shardCount]*shard
	wheel    *timeWheel
	tagIdx   *index
	depIdx   *index
	bloom    *Bloom
	cfg      Config
	statsMu  sync.Mutex
	stats    backend.Stats
	stopCh   chan struct{}
	stopOnce sync.Once
}

// index is a reverse many-to-many map (tag->keys or dependency->dependents).
type index struct {
	mu sync.RWMutex
	m  map[string]map[string]struct{}
}

func newIndex() *index { return &index{m: make(map[string]map[string]struct{})} }

func (x *index) add(k, v string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := x.m[k]
	if !ok {
		set = make(map[string]struct{})
		x.m[k] = set
	}
	set[v] = struct{}{}
}

func (x *index) remove(k, v string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if set, ok := x.m[k]; ok {
		delete(set, v)
		if len(set) == 0 {
			delete(x.m, k)
		}
	}
}

func (x *index) get(k string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set, ok := x.m[k]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// take removes and returns the key's set in one step, the way
// delete_by_tag removes the tag_index entry up front before iterating.
func (x *index) take(k string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := x.m[k]
	if !ok {
		return nil
	}
	delete(x.m, k)
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

func (x *index) clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.m = make(map[string]map[string]struct{})
}

// New builds a Cache and, if CleanupInterval > 0, starts the
// background reaper goroutine, the active half of the dual
// lazy/active expiration strategy.
func New(cfg Config) *Cache {
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	c := &Cache{
		wheel:  newTimeWheel(time.Second, cfg.MaxTTL),
		tagIdx: newIndex(),
		depIdx: newIndex(),
		bloom:  cfg.Bloom,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{data: make(map[string]*entry.Entry[[]byte])}
	}
	c.startJanitor()
	return c
}

// WithDefaults builds a Cache using DefaultConfig().
func WithDefaults() *Cache { return New(DefaultConfig()) }

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// startJanitor launches the cleanup loop.
func (c *Cache) startJanitor() {
	if c.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.cleanupExpired()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop terminates the background reaper. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// cleanupExpired ticks the time wheel once and reaps any keys it
// surfaces that are truly expired, not merely stale-and-servable.
func (c *Cache) cleanupExpired() int {
	candidates := c.wheel.advance()
	count := 0
	for _, key := range candidates {
		sh := c.shardFor(key)
		sh.mu.Lock()
		e, ok := sh.data[key]
		if ok && e.Expired() && !e.Stale() {
			c.removeEntryLocked(sh, key, e)
			count++
		}
		sh.mu.Unlock()
	}
	if count > 0 {
		c.statsMu.Lock()
		c.stats.Evictions += uint64(count)
		c.statsMu.Unlock()
		c.cfg.Logger.Debug().Int("count", count).Msg("janitor reaped expired keys")
	}
	return count
}

// removeEntryLocked deletes key from the shard (caller holds sh.mu)
// and cleans up the TTL wheel, tag index, and dependency index.
func (c *Cache) removeEntryLocked(sh *shard, key string, e *entry.Entry[[]byte]) {
	delete(sh.data, key)
	c.wheel.remove(key)
	for _, tag := range e.Tags {
		c.tagIdx.remove(tag, key)
	}
	for _, dep := range e.Dependencies {
		c.depIdx.remove(dep, key)
	}
}

// maybeEvict drops entries once the cache is at or over capacity.
// Eviction order is unspecified: a single map scan, not an LRU list.
func (c *Cache) maybeEvict() {
	if c.cfg.MaxCapacity <= 0 {
		return
	}
	total := c.totalLen()
	if total < c.cfg.MaxCapacity {
		return
	}
	toRemove := total - c.cfg.MaxCapacity + 1
	removed := 0
	for _, sh := range c.shards {
		if removed >= toRemove {
			break
		}
		sh.mu.Lock()
		for key, e := range sh.data {
			if removed >= toRemove {
				break
			}
			c.removeEntryLocked(sh, key, e)
			removed++
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		c.statsMu.Lock()
		c.stats.Evictions += uint64(removed)
		c.statsMu.Unlock()
		c.cfg.Logger.Debug().Int("removed", removed).Int("capacity", c.cfg.MaxCapacity).Msg("capacity eviction")
	}
}

func (c *Cache) totalLen() int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

// Get implements backend.Base.
func (c *Cache) Get(_ context.Context, key string) (*entry.Entry[[]byte], error) {
	if c.bloom != nil && !c.bloom.MightContain(key) {
		c.statsMu.Lock()
		c.stats.Misses++
		c.statsMu.Unlock()
		return nil, nil
	}

	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.data[key]
	if !ok {
		c.statsMu.Lock()
		c.stats.Misses++
		c.statsMu.Unlock()
		return nil, nil
	}

	if e.Expired() && !e.Stale() {
		c.removeEntryLocked(sh, key, e)
		c.statsMu.Lock()
		c.stats.Misses++
		c.statsMu.Unlock()
		return nil, nil
	}

	e.Touch()
	c.statsMu.Lock()
	if e.Stale() {
		c.stats.StaleHits++
	} else {
		c.stats.Hits++
	}
	c.statsMu.Unlock()

	cp := *e
	return &cp, nil
}

// Set implements backend.Base.
func (c *Cache) Set(_ context.Context, key string, value []byte, opts entry.Options) error {
	c.maybeEvict()

	now := time.Now()
	e := &entry.Entry[[]byte]{
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		TTL:          opts.TTL,
		SWR:          opts.StaleWhileRevalidate,
		Tags:         opts.Tags,
		Dependencies: opts.Dependencies,
		Cost:         opts.CostOrDefault(),
		Size:         len(value),
		ETag:         opts.ETag,
		Negative:     opts.Negative,
	}

	sh := c.shardFor(key)
	sh.mu.Lock()
	existing, exists := sh.data[key]
	if opts.IfVersion != nil && exists && existing.Version != *opts.IfVersion {
		sh.mu.Unlock()
		return cerr.VersionMismatch(*opts.IfVersion, existing.Version)
	}
	// IfVersion against an absent key treats it as version 0: a
	// conditional create succeeds rather than failing the first write.
	if exists {
		// Version is monotonic per key; the replaced entry's index
		// memberships no longer describe the current entry and go away
		// with it.
		e.Version = existing.Version + 1
		c.wheel.remove(key)
		for _, tag := range existing.Tags {
			c.tagIdx.remove(tag, key)
		}
		for _, dep := range existing.Dependencies {
			c.depIdx.remove(dep, key)
		}
	}

	if opts.TTL != nil {
		total := *opts.TTL
		if opts.StaleWhileRevalidate != nil {
			total += *opts.StaleWhileRevalidate
		}
		c.wheel.schedule(key, total)
	}

	sh.data[key] = e
	sh.mu.Unlock()

	for _, tag := range opts.Tags {
		c.tagIdx.add(tag, key)
	}
	for _, dep := range opts.Dependencies {
		c.depIdx.add(dep, key)
	}

	c.statsMu.Lock()
	c.stats.Writes++
	c.statsMu.Unlock()
	if c.bloom != nil {
		c.bloom.Add(key)
	}
	return nil
}

// Delete implements backend.Base.
func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.data[key]
	if ok {
		c.removeEntryLocked(sh, key, e)
	}
	sh.mu.Unlock()
	if ok {
		c.statsMu.Lock()
		c.stats.Deletes++
		c.statsMu.Unlock()
	}
	return ok, nil
}

// Exists implements backend.Base.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	sh := c.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[key]
	if !ok {
		return false, nil
	}
	return !e.Expired() || e.Stale(), nil
}

// GetMany implements backend.Base.
func (c *Cache) GetMany(ctx context.Context, keys []string) ([]*entry.Entry[[]byte], error) {
	out := make([]*entry.Entry[[]byte], len(keys))
	for i, k := range keys {
		e, err := c.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// SetMany implements backend.Base.
func (c *Cache) SetMany(ctx context.Context, items []backend.SetItem) error {
	for _, it := range items {
		if err := c.Set(ctx, it.Key, it.Value, it.Options); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMany implements backend.Base.
func (c *Cache) DeleteMany(ctx context.Context, keys []string) (uint64, error) {
	var n uint64
	for _, k := range keys {
		ok, err := c.Delete(ctx, k)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Clear implements backend.Base.
func (c *Cache) Clear(_ context.Context) error {
	for _, sh := range c.shards {
		sh.mu.Lock()
		sh.data = make(map[string]*entry.Entry[[]byte])
		sh.mu.Unlock()
	}
	c.tagIdx.clear()
	c.depIdx.clear()
	c.wheel = newTimeWheel(time.Second, c.cfg.MaxTTL)
	return nil
}

// memoryUsage sums entry sizes plus key lengths.
func (c *Cache) memoryUsage() int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		for k, e := range sh.data {
			n += e.Size + len(k)
		}
		sh.mu.RUnlock()
	}
	return n
}

// Stats implements backend.Base.
func (c *Cache) Stats(_ context.Context) (backend.Stats, error) {
	c.statsMu.Lock()
	s := c.stats
	c.statsMu.Unlock()
	s.Size = c.totalLen()
	s.MemoryBytes = c.memoryUsage()
	return s, nil
}

// Len implements backend.Base.
func (c *Cache) Len(_ context.Context) (int, error) { return c.totalLen(), nil }

// GetByTag implements backend.Tagged.
func (c *Cache) GetByTag(_ context.Context, tag string) ([]string, error) {
	return c.tagIdx.get(tag), nil
}

// DeleteByTag implements backend.Tagged.
func (c *Cache) DeleteByTag(ctx context.Context, tag string) (uint64, error) {
	keys := c.tagIdx.take(tag)
	var n uint64
	for _, key := range keys {
		sh := c.shardFor(key)
		sh.mu.Lock()
		if e, ok := sh.data[key]; ok {
			c.removeEntryLocked(sh, key, e)
			n++
		}
		sh.mu.Unlock()
	}
	if n > 0 {
		c.statsMu.Lock()
		c.stats.Deletes += n
		c.statsMu.Unlock()
	}
	return n, nil
}

// GetDependents implements backend.Dependencies.
func (c *Cache) GetDependents(_ context.Context, key string) ([]string, error) {
	return c.depIdx.get(key), nil
}

var (
	_ backend.Base         = (*Cache)(nil)
	_ backend.Tagged       = (*Cache)(nil)
	_ backend.Dependencies = (*Cache)(nil)
)
