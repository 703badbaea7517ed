// Package manager provides the high-level cache façade: keying,
// default/jittered TTLs, coalesced reads, stale-while-revalidate
// background refresh, and dependency-graph cascade invalidation.
// A Manager is generic over a backend.Base (required) plus whatever
// optional capabilities (backend.Tagged, backend.Dependencies) the
// concrete backend proves via type assertion.
package manager

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/chronocache/chronocache/backend"
	"github.com/chronocache/chronocache/cerr"
	"github.com/chronocache/chronocache/coalesce"
	"github.com/chronocache/chronocache/entry"
	"github.com/chronocache/chronocache/key"
	"github.com/chronocache/chronocache/metrics"
	"github.com/chronocache/chronocache/serialize"
	"github.com/rs/zerolog"
)

// Config configures a Manager.
type Config struct {
	// DefaultTTL is applied to writes that don't specify their own TTL.
	DefaultTTL time.Duration
	// Namespace prefixes every key with "<namespace>:".
	Namespace string
	// TTLJitter is the fraction (0.0-1.0) of TTL added as random
	// thundering-herd mitigation on every write; 0 disables it.
	TTLJitter float64
	Logger    zerolog.Logger
}

// DefaultConfig is a 5 minute default TTL and 10% jitter.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		TTLJitter:  0.1,
		Logger:     zerolog.Nop(),
	}
}

// Manager[T] is the typed façade over a backend.Base.
type Manager[T any] struct {
	backend    backend.Base
	serializer serialize.Serializer
	metrics    metrics.Metrics
	cfg        Config
	coalescer  *coalesce.Coalescer
}

// New builds a Manager with the JSON serializer and no-op metrics.
func New[T any](b backend.Base) *Manager[T] {
	return NewWith[T](b, serialize.JSON{}, metrics.Noop{}, DefaultConfig())
}

// NewWith builds a Manager with explicit serializer/metrics/config.
func NewWith[T any](b backend.Base, s serialize.Serializer, m metrics.Metrics, cfg Config) *Manager[T] {
	return &Manager[T]{
		backend:    b,
		serializer: s,
		metrics:    m,
		cfg:        cfg,
		coalescer:  coalesce.New(),
	}
}

func (m *Manager[T]) fullKey(k key.CacheKey) string {
	body := k.Key()
	if m.cfg.Namespace == "" {
		return body
	}
	return m.cfg.Namespace + ":" + body
}

// applyTTLJitter adds uniform(0, ttl*jitter) to ttl, truncated to
// whole seconds, so a burst of writes doesn't expire in the same tick.
func (m *Manager[T]) applyTTLJitter(ttl time.Duration) time.Duration {
	if m.cfg.TTLJitter <= 0 {
		return ttl
	}
	jitterRangeSecs := int64(ttl.Seconds() * m.cfg.TTLJitter)
	if jitterRangeSecs <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(jitterRangeSecs))
	if err != nil {
		return ttl
	}
	return ttl + time.Duration(n.Int64())*time.Second
}

// Get fetches and deserializes a value, coalescing concurrent callers
// of the same key through the request coalescer.
func (m *Manager[T]) Get(ctx context.Context, k key.CacheKey) (Result[T], error) {
	full := m.fullKey(k)
	start := time.Now()

	v, err := m.coalescer.DoRequest(full, func() (any, error) {
		return m.backend.Get(ctx, full)
	})
	m.metrics.RecordLatency(metrics.OpGet, time.Since(start))
	if err != nil {
		return Result[T]{}, err
	}

	raw, _ := v.(*entry.Entry[[]byte])
	if raw == nil {
		m.metrics.RecordMiss(full)
		return Result[T]{Kind: Miss}, nil
	}
	if raw.Expired() && !raw.Stale() {
		m.metrics.RecordMiss(full)
		return Result[T]{Kind: Miss}, nil
	}

	if raw.Negative {
		m.metrics.RecordHit(full, metrics.TierL1Memory)
		return Result[T]{Kind: NegativeHit}, nil
	}

	e, err := m.deserializeEntry(raw)
	if err != nil {
		return Result[T]{}, err
	}
	if raw.Stale() {
		m.metrics.RecordStaleHit(full)
		return Result[T]{Kind: Stale, Entry: e}, nil
	}
	m.metrics.RecordHit(full, metrics.TierL1Memory)
	return Result[T]{Kind: Hit, Entry: e}, nil
}

// Set serializes value and writes it through setRaw.
func (m *Manager[T]) Set(ctx context.Context, k key.CacheKey, value T, opts entry.Options) error {
	full := m.fullKey(k)
	start := time.Now()
	data, err := m.serializer.Serialize(value)
	m.metrics.RecordLatency(metrics.OpSerialize, time.Since(start))
	if err != nil {
		return err
	}
	return m.setRaw(ctx, full, data, opts)
}

// setRaw applies default TTL and jitter, captures the key's current
// dependents (before overwriting it, since those dependents were
// computed from the OLD value and must be invalidated once it
// changes), writes, then cascades the captured dependents best-effort.
func (m *Manager[T]) setRaw(ctx context.Context, full string, data []byte, opts entry.Options) error {
	if opts.TTL == nil && m.cfg.DefaultTTL > 0 {
		opts.TTL = &m.cfg.DefaultTTL
	}
	if opts.TTL != nil {
		jittered := m.applyTTLJitter(*opts.TTL)
		opts.TTL = &jittered
	}

	var dependents []string
	if dep, ok := m.backend.(backend.Dependencies); ok {
		dependents, _ = dep.GetDependents(ctx, full)
	}

	start := time.Now()
	if err := m.backend.Set(ctx, full, data, opts); err != nil {
		return err
	}
	m.metrics.RecordLatency(metrics.OpSet, time.Since(start))

	for _, dep := range dependents {
		_, _, _ = m.invalidateRecursive(ctx, dep)
	}
	return nil
}

// Loader computes a value on a cache miss or expired-stale entry.
type Loader[T any] func(ctx context.Context) (T, error)

// GetOrCompute returns the cached value, or runs compute to produce
// and store one. A stale hit triggers a deduplicated background
// refresh via TrySpawnRefresh and still returns the stale value
// immediately (stale-while-revalidate). The read-check-compute-store
// sequence runs as one coalesced critical section per key, so racing
// callers share a single compute.
func (m *Manager[T]) GetOrCompute(ctx context.Context, k key.CacheKey, compute Loader[T], opts entry.Options) (Result[T], error) {
	full := m.fullKey(k)

	v, err := m.coalescer.DoRequest(full, func() (any, error) {
		raw, err := m.backend.Get(ctx, full)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			if !raw.Expired() {
				return raw, nil
			}
			if raw.Stale() {
				m.coalescer.TrySpawnRefresh(full, func() {
					bgCtx := context.Background()
					val, err := compute(bgCtx)
					if err != nil {
						m.cfg.Logger.Warn().Err(err).Str("key", full).Msg("background refresh failed")
						return
					}
					data, err := m.serializer.Serialize(val)
					if err != nil {
						m.cfg.Logger.Warn().Err(err).Str("key", full).Msg("background refresh serialize failed")
						return
					}
					if err := m.setRaw(bgCtx, full, data, opts); err != nil {
						m.cfg.Logger.Warn().Err(err).Str("key", full).Msg("background refresh store failed")
					}
				})
				return raw, nil
			}
		}

		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := m.serializer.Serialize(val)
		if err != nil {
			return nil, err
		}
		if err := m.setRaw(ctx, full, data, opts); err != nil {
			return nil, err
		}
		return entry.New(data, len(data)), nil
	})
	if err != nil {
		return Result[T]{}, err
	}

	raw, _ := v.(*entry.Entry[[]byte])
	if raw == nil {
		return Result[T]{}, cerr.Internal("compute returned no entry")
	}
	if raw.Negative {
		return Result[T]{Kind: NegativeHit}, nil
	}
	e, err := m.deserializeEntry(raw)
	if err != nil {
		return Result[T]{}, err
	}
	if raw.Stale() {
		return Result[T]{Kind: Stale, Entry: e}, nil
	}
	return Result[T]{Kind: Hit, Entry: e}, nil
}

// Delete removes a key and cascades to its dependents, returning
// whether the key itself was present.
func (m *Manager[T]) Delete(ctx context.Context, k key.CacheKey) (bool, error) {
	start := time.Now()
	deleted, _, err := m.invalidateRecursive(ctx, m.fullKey(k))
	m.metrics.RecordLatency(metrics.OpDelete, time.Since(start))
	return deleted, err
}

// Invalidate cascades a key's deletion to every (transitive) dependent,
// returning the total number of entries removed.
func (m *Manager[T]) Invalidate(ctx context.Context, k key.CacheKey) (uint64, error) {
	start := time.Now()
	_, count, err := m.invalidateRecursive(ctx, m.fullKey(k))
	m.metrics.RecordLatency(metrics.OpInvalidate, time.Since(start))
	return count, err
}

// invalidateRecursive walks the dependency graph breadth-first,
// deleting each node as it's dequeued (not in a separate collect-then-
// delete phase) and tracking visited keys so cycles terminate instead
// of looping. An error deleting the starting key is returned at once;
// an error deleting a dependent is logged and the walk goes on.
func (m *Manager[T]) invalidateRecursive(ctx context.Context, key string) (bool, uint64, error) {
	queue := []string{key}
	visited := map[string]struct{}{key: {}}

	var initialDeleted bool
	first := true
	var count uint64

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		if dep, ok := m.backend.(backend.Dependencies); ok {
			deps, err := dep.GetDependents(ctx, k)
			if err == nil {
				for _, d := range deps {
					if _, seen := visited[d]; !seen {
						visited[d] = struct{}{}
						queue = append(queue, d)
					}
				}
			}
		}

		deleted, err := m.backend.Delete(ctx, k)
		if err != nil {
			if first {
				return false, count, err
			}
			m.cfg.Logger.Warn().Err(err).Str("key", k).Msg("cascade delete failed")
			continue
		}
		if deleted {
			count++
		}
		if first {
			initialDeleted = deleted
			first = false
		}
	}
	return initialDeleted, count, nil
}

// ApplyInvalidation applies one cross-process invalidation message to
// the local backend: the receive side of backend.Distributed's
// channel. Key messages cascade like a local Invalidate; pattern
// messages are unsupported here (a remote backend resolves patterns
// server-side, the in-memory map has no key listing to match against).
func (m *Manager[T]) ApplyInvalidation(ctx context.Context, msg backend.Invalidation) error {
	switch msg.Kind {
	case backend.InvalidateKey:
		_, _, err := m.invalidateRecursive(ctx, msg.Value)
		return err
	case backend.InvalidateTag:
		_, err := m.DeleteByTag(ctx, msg.Value)
		return err
	case backend.InvalidateClear:
		return m.backend.Clear(ctx)
	default:
		return cerr.ErrUnsupported
	}
}

// DeleteByTag removes every entry tagged with tag, if the backend
// proves backend.Tagged.
func (m *Manager[T]) DeleteByTag(ctx context.Context, tag string) (uint64, error) {
	t, ok := m.backend.(backend.Tagged)
	if !ok {
		return 0, cerr.ErrUnsupported
	}
	start := time.Now()
	n, err := t.DeleteByTag(ctx, tag)
	m.metrics.RecordLatency(metrics.OpInvalidate, time.Since(start))
	return n, err
}

// GetKeysByTag lists every key tagged with tag.
func (m *Manager[T]) GetKeysByTag(ctx context.Context, tag string) ([]string, error) {
	t, ok := m.backend.(backend.Tagged)
	if !ok {
		return nil, cerr.ErrUnsupported
	}
	return t.GetByTag(ctx, tag)
}

// Exists reports whether key is present (and not hard-expired).
func (m *Manager[T]) Exists(ctx context.Context, k key.CacheKey) (bool, error) {
	return m.backend.Exists(ctx, m.fullKey(k))
}

// Clear empties the backend.
func (m *Manager[T]) Clear(ctx context.Context) error { return m.backend.Clear(ctx) }

// Stats returns the backend's current counters.
func (m *Manager[T]) Stats(ctx context.Context) (backend.Stats, error) { return m.backend.Stats(ctx) }

// Len returns the backend's entry count.
func (m *Manager[T]) Len(ctx context.Context) (int, error) { return m.backend.Len(ctx) }

// IsEmpty reports whether the backend holds zero entries.
func (m *Manager[T]) IsEmpty(ctx context.Context) (bool, error) {
	n, err := m.backend.Len(ctx)
	return n == 0, err
}

// Group returns a namespaced façade over this manager, auto-tagging
// every write with the group's tag for bulk invalidation.
func (m *Manager[T]) Group(namespace string) *Group[T] {
	return newGroup(m, namespace)
}

func (m *Manager[T]) deserializeEntry(raw *entry.Entry[[]byte]) (*entry.Entry[T], error) {
	start := time.Now()
	var value T
	if err := m.serializer.Deserialize(raw.Value, &value); err != nil {
		return nil, err
	}
	m.metrics.RecordLatency(metrics.OpDeserialize, time.Since(start))
	return &entry.Entry[T]{
		Value:        value,
		CreatedAt:    raw.CreatedAt,
		LastAccessed: raw.LastAccessed,
		AccessCount:  raw.AccessCount,
		TTL:          raw.TTL,
		SWR:          raw.SWR,
		Tags:         raw.Tags,
		Dependencies: raw.Dependencies,
		Cost:         raw.Cost,
		Size:         raw.Size,
		ETag:         raw.ETag,
		Version:      raw.Version,
	}, nil
}
