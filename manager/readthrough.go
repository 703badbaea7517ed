package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronocache/chronocache/cerr"
	"github.com/chronocache/chronocache/entry"
	"github.com/chronocache/chronocache/key"
)

// KeyedLoader loads the value for a specific key, e.g. a database
// fetch by id. Returning an error wrapping cerr.ErrNotFound signals a
// legitimate "no such row", which ReadThrough.Get converts into a
// clean (zero value, false, nil) instead of propagating an error to the caller.
type KeyedLoader[K comparable, V any] func(ctx context.Context, k K) (V, error)

// ReadThrough wraps a Manager with a loader keyed by K, so callers
// never see the cache at all: they ask for a K and get a V.
type ReadThrough[K comparable, V any] struct {
	m     *Manager[V]
	load  KeyedLoader[K, V]
	keyFn func(K) key.CacheKey
	opts  entry.Options
}

// NewReadThrough builds a ReadThrough cache. keyFn renders a K into a
// CacheKey; a nil keyFn defaults to fmt.Sprint-ing K through key.String.
func NewReadThrough[K comparable, V any](m *Manager[V], load KeyedLoader[K, V], keyFn func(K) key.CacheKey, opts entry.Options) *ReadThrough[K, V] {
	if keyFn == nil {
		keyFn = func(k K) key.CacheKey { return key.String(fmt.Sprint(k)) }
	}
	return &ReadThrough[K, V]{m: m, load: load, keyFn: keyFn, opts: opts}
}

// Get returns the cached value for k, loading and caching it on a
// miss. A fresh hit returns immediately; a stale hit returns
// immediately too but schedules a deduplicated background refresh
// first. A loader error wrapping cerr.ErrNotFound becomes (zero,
// false, nil) rather than an error.
func (r *ReadThrough[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	ck := r.keyFn(k)

	res, err := r.m.GetOrCompute(ctx, ck, func(ctx context.Context) (V, error) {
		return r.load(ctx, k)
	}, r.opts)
	if err != nil {
		var zero V
		if errors.Is(err, cerr.ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	val, ok := res.Value()
	return val, ok, nil
}

// Refresh forces a synchronous reload of k regardless of freshness.
func (r *ReadThrough[K, V]) Refresh(ctx context.Context, k K) (V, error) {
	ck := r.keyFn(k)
	val, err := r.load(ctx, k)
	if err != nil {
		var zero V
		return zero, err
	}
	if err := r.m.Set(ctx, ck, val, r.opts); err != nil {
		var zero V
		return zero, err
	}
	return val, nil
}
