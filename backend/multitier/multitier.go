// Package multitier composes an L1 (fast, local) and an L2 (slow,
// remote) backend.Base behind a circuit breaker: reads try L1 first
// and fall back to L2 with backfill, writes go through both tiers,
// and L2 failures trip the breaker so a down L2 degrades to
// L1-only/miss rather than blocking every call. Error propagation is
// deliberately asymmetric per operation; each method documents its
// own swallow-vs-surface rule.
package multitier

import (
	"context"

	"github.com/chronocache/chronocache/backend"
	"github.com/chronocache/chronocache/cerr"
	"github.com/chronocache/chronocache/entry"
	"github.com/rs/zerolog"
)

// Backend composes L1 and L2 backend.Base implementations.
type Backend struct {
	l1      backend.Base
	l2      backend.Base
	breaker *CircuitBreaker
	logger  zerolog.Logger
}

// New builds a multi-tier backend. Swallowed L1-backfill/best-effort
// errors are discarded silently until WithLogger attaches a sink.
func New(l1, l2 backend.Base, breaker *CircuitBreaker) *Backend {
	return &Backend{l1: l1, l2: l2, breaker: breaker, logger: zerolog.Nop()}
}

// WithLogger attaches a logger that records the L1 backfill/best-effort
// failures this backend otherwise swallows per §7's propagation policy.
func (b *Backend) WithLogger(logger zerolog.Logger) *Backend {
	b.logger = logger
	return b
}

// Get tries L1 first; L1 errors are swallowed (treated as a miss, to
// favor availability), then falls through to L2 behind the breaker,
// backfilling L1 on an L2 hit.
func (b *Backend) Get(ctx context.Context, key string) (*entry.Entry[[]byte], error) {
	if e, err := b.l1.Get(ctx, key); err == nil && e != nil {
		return e, nil
	}
	// l1 error or miss: fall through to L2.

	if !b.breaker.AllowRequest() {
		return nil, nil // degraded mode: circuit open
	}

	e, err := b.l2.Get(ctx, key)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return nil, err
	}
	b.breaker.ReportSuccess()
	if e == nil {
		return nil, nil
	}

	opts := entry.Options{
		TTL:                  e.TTL,
		StaleWhileRevalidate: e.SWR,
		Tags:                 e.Tags,
		Dependencies:         e.Dependencies,
		Cost:                 &e.Cost,
		ETag:                 e.ETag,
		Negative:             e.Negative,
	}
	if err := b.l1.Set(ctx, key, e.Value, opts); err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("l1 backfill failed")
	}
	return e, nil
}

// Set is write-through: L2 first, then L1, gated by the breaker since
// writes should fail fast when the durable tier is unavailable.
func (b *Backend) Set(ctx context.Context, key string, value []byte, opts entry.Options) error {
	if !b.breaker.AllowRequest() {
		return cerr.Backend("circuit breaker open")
	}
	if err := b.l2.Set(ctx, key, value, opts); err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return err
	}
	b.breaker.ReportSuccess()
	return b.l1.Set(ctx, key, value, opts)
}

// Delete removes from both tiers, best-effort on L1, propagating L2's
// outcome (and L1's error, if any, once L2 succeeds).
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	l2Deleted, l2Err := b.l2.Delete(ctx, key)
	l1Deleted, l1Err := b.l1.Delete(ctx, key)

	if l2Err != nil {
		if cerr.IsTripping(l2Err) {
			b.breaker.ReportFailure()
		}
		return false, l2Err
	}
	if l1Err != nil {
		return false, l1Err
	}
	return l2Deleted || l1Deleted, nil
}

// Exists checks L1 first, then L2 behind the breaker.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := b.l1.Exists(ctx, key); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	if !b.breaker.AllowRequest() {
		return false, nil
	}

	ok, err := b.l2.Exists(ctx, key)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return false, err
	}
	b.breaker.ReportSuccess()
	return ok, nil
}

// GetMany serves what it can from L1, then fetches the remaining
// misses from L2 (behind the breaker) and backfills L1. An L2 failure
// degrades to the partial L1-only result rather than propagating.
func (b *Backend) GetMany(ctx context.Context, keys []string) ([]*entry.Entry[[]byte], error) {
	l1Results, err := b.l1.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	final := make([]*entry.Entry[[]byte], len(keys))
	var missingIdx []int
	var missingKeys []string
	for i, e := range l1Results {
		final[i] = e
		if e == nil {
			missingIdx = append(missingIdx, i)
			missingKeys = append(missingKeys, keys[i])
		}
	}
	if len(missingKeys) == 0 {
		return final, nil
	}
	if !b.breaker.AllowRequest() {
		return final, nil
	}

	l2Results, err := b.l2.GetMany(ctx, missingKeys)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return final, nil // degrade to partial results
	}
	b.breaker.ReportSuccess()

	for i, e := range l2Results {
		if e == nil {
			continue
		}
		idx := missingIdx[i]
		opts := entry.Options{
			TTL: e.TTL, StaleWhileRevalidate: e.SWR, Tags: e.Tags,
			Dependencies: e.Dependencies, Cost: &e.Cost, ETag: e.ETag,
			Negative: e.Negative,
		}
		if err := b.l1.Set(ctx, keys[idx], e.Value, opts); err != nil {
			b.logger.Warn().Err(err).Str("key", keys[idx]).Msg("l1 backfill failed")
		}
		final[idx] = e
	}
	return final, nil
}

// SetMany writes L2 then L1, gated by the breaker like Set.
func (b *Backend) SetMany(ctx context.Context, items []backend.SetItem) error {
	if !b.breaker.AllowRequest() {
		return cerr.Backend("circuit breaker open")
	}
	if err := b.l2.SetMany(ctx, items); err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return err
	}
	b.breaker.ReportSuccess()
	return b.l1.SetMany(ctx, items)
}

// DeleteMany mirrors Delete: L2's count/error is authoritative, L1 is best-effort.
func (b *Backend) DeleteMany(ctx context.Context, keys []string) (uint64, error) {
	n, err := b.l2.DeleteMany(ctx, keys)
	_, _ = b.l1.DeleteMany(ctx, keys)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return 0, err
	}
	return n, nil
}

// Clear clears both tiers; L1's outcome is ignored, L2's is authoritative.
func (b *Backend) Clear(ctx context.Context) error {
	l2Err := b.l2.Clear(ctx)
	if err := b.l1.Clear(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("l1 clear failed")
	}
	return l2Err
}

// Stats aggregates hits/stale-hits/evictions across both tiers but
// treats L2 as the source of truth for misses/writes/deletes/size,
// and L1 for memory_bytes.
func (b *Backend) Stats(ctx context.Context) (backend.Stats, error) {
	l1, err := b.l1.Stats(ctx)
	if err != nil {
		return backend.Stats{}, err
	}
	l2, err := b.l2.Stats(ctx)
	if err != nil {
		l2 = backend.Stats{}
	}
	return backend.Stats{
		Hits:        l1.Hits + l2.Hits,
		Misses:      l2.Misses,
		StaleHits:   l1.StaleHits + l2.StaleHits,
		Writes:      l2.Writes,
		Deletes:     l2.Deletes,
		Evictions:   l1.Evictions + l2.Evictions,
		Size:        l2.Size,
		MemoryBytes: l1.MemoryBytes,
	}, nil
}

// Len defers to L2, the tier with the durable/complete key set.
func (b *Backend) Len(ctx context.Context) (int, error) { return b.l2.Len(ctx) }

// GetByTag prefers L2 (the authority) and falls back to L1 when the
// breaker is open or L2 errors.
func (b *Backend) GetByTag(ctx context.Context, tag string) ([]string, error) {
	l2t, ok := b.l2.(backend.Tagged)
	l1t, l1ok := b.l1.(backend.Tagged)
	if !ok {
		if l1ok {
			return l1t.GetByTag(ctx, tag)
		}
		return nil, cerr.ErrUnsupported
	}
	if !b.breaker.AllowRequest() {
		if l1ok {
			return l1t.GetByTag(ctx, tag)
		}
		return nil, nil
	}
	keys, err := l2t.GetByTag(ctx, tag)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		if l1ok {
			return l1t.GetByTag(ctx, tag)
		}
		return nil, err
	}
	b.breaker.ReportSuccess()
	return keys, nil
}

// DeleteByTag deletes from L2 (authoritative) and best-effort from L1.
func (b *Backend) DeleteByTag(ctx context.Context, tag string) (uint64, error) {
	l2t, ok := b.l2.(backend.Tagged)
	if !ok {
		return 0, cerr.ErrUnsupported
	}
	if l1t, ok := b.l1.(backend.Tagged); ok {
		defer func() {
			if _, err := l1t.DeleteByTag(ctx, tag); err != nil {
				b.logger.Warn().Err(err).Str("tag", tag).Msg("l1 delete-by-tag failed")
			}
		}()
	}
	n, err := l2t.DeleteByTag(ctx, tag)
	if err != nil {
		if cerr.IsTripping(err) {
			b.breaker.ReportFailure()
		}
		return 0, err
	}
	b.breaker.ReportSuccess()
	return n, nil
}

var (
	_ backend.Base   = (*Backend)(nil)
	_ backend.Tagged = (*Backend)(nil)
)
