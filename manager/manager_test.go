package manager

import (
	"context"
	"testing"
	"time"

	"github.com/chronocache/chronocache/backend"
	"github.com/chronocache/chronocache/backend/memory"
	"github.com/chronocache/chronocache/cerr"
	"github.com/chronocache/chronocache/entry"
	"github.com/chronocache/chronocache/key"
	"github.com/chronocache/chronocache/metrics"
	"github.com/chronocache/chronocache/serialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager[string] {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.CleanupInterval = 0
	mem := memory.New(cfg)
	t.Cleanup(mem.Stop)

	mCfg := DefaultConfig()
	mCfg.TTLJitter = 0 // deterministic TTLs in tests
	return NewWith[string](mem, serialize.JSON{}, metrics.Noop{}, mCfg)
}

func TestGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Set(ctx, key.String("k"), "hello", entry.NewOpts().TTL(time.Minute).Build()))

	res, err := m.Get(ctx, key.String("k"))
	require.NoError(t, err)
	assert.True(t, res.IsHit())
	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestGetMiss(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	res, err := m.Get(ctx, key.String("missing"))
	require.NoError(t, err)
	assert.True(t, res.IsMiss())
}

func TestNamespacing(t *testing.T) {
	ctx := context.Background()
	cfg := memory.DefaultConfig()
	cfg.CleanupInterval = 0
	mem := memory.New(cfg)
	defer mem.Stop()

	mCfg := DefaultConfig()
	mCfg.Namespace = "ns"
	mCfg.TTLJitter = 0
	m := NewWith[string](mem, serialize.JSON{}, metrics.Noop{}, mCfg)

	require.NoError(t, m.Set(ctx, key.String("k"), "v", entry.NewOpts().TTL(time.Minute).Build()))

	raw, err := mem.Get(ctx, "ns:k")
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Set(ctx, key.String("parent"), "p", entry.NewOpts().TTL(time.Minute).Build()))
	require.NoError(t, m.Set(ctx, key.String("child"), "c", entry.NewOpts().TTL(time.Minute).DependsOn("parent").Build()))

	count, err := m.Invalidate(ctx, key.String("parent"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	res, _ := m.Get(ctx, key.String("parent"))
	assert.True(t, res.IsMiss())
	res, _ = m.Get(ctx, key.String("child"))
	assert.True(t, res.IsMiss())
}

func TestDeleteCascadeToleratesCycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	// a depends on b, b depends on a: invalidateRecursive must terminate.
	require.NoError(t, m.Set(ctx, key.String("a"), "a", entry.NewOpts().TTL(time.Minute).DependsOn("b").Build()))
	require.NoError(t, m.Set(ctx, key.String("b"), "b", entry.NewOpts().TTL(time.Minute).DependsOn("a").Build()))

	done := make(chan struct{})
	go func() {
		_, _ = m.Invalidate(ctx, key.String("a"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cascade invalidation did not terminate on a dependency cycle")
	}
}

func TestSetCascadesPreviousDependents(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Set(ctx, key.String("x"), "x1", entry.NewOpts().TTL(time.Minute).Build()))
	require.NoError(t, m.Set(ctx, key.String("y"), "y", entry.NewOpts().TTL(time.Minute).DependsOn("x").Build()))

	// Rewriting x invalidates y, which was computed from the old x.
	require.NoError(t, m.Set(ctx, key.String("x"), "x2", entry.NewOpts().TTL(time.Minute).Build()))

	res, err := m.Get(ctx, key.String("y"))
	require.NoError(t, err)
	assert.True(t, res.IsMiss())

	res, err = m.Get(ctx, key.String("x"))
	require.NoError(t, err)
	v, _ := res.Value()
	assert.Equal(t, "x2", v)
}

func TestTTLJitterStaysWithinBound(t *testing.T) {
	mem := memory.New(memory.DefaultConfig())
	t.Cleanup(mem.Stop)
	cfg := DefaultConfig()
	cfg.TTLJitter = 0.5
	m := NewWith[string](mem, serialize.JSON{}, metrics.Noop{}, cfg)

	ttl := 100 * time.Second
	for i := 0; i < 50; i++ {
		jittered := m.applyTTLJitter(ttl)
		assert.GreaterOrEqual(t, jittered, ttl)
		assert.LessOrEqual(t, jittered, 150*time.Second)
	}
}

func TestGetOrComputeMissComputesAndStores(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	calls := 0
	loader := func(ctx context.Context) (string, error) {
		calls++
		return "computed-value", nil
	}

	res, err := m.GetOrCompute(ctx, key.String("k"), loader, entry.NewOpts().TTL(time.Minute).Build())
	require.NoError(t, err)
	v, _ := res.Value()
	assert.Equal(t, "computed-value", v)
	assert.Equal(t, 1, calls)

	res2, err := m.Get(ctx, key.String("k"))
	require.NoError(t, err)
	v2, _ := res2.Value()
	assert.Equal(t, "computed-value", v2)
}

func TestGetOrComputeStaleTriggersBackgroundRefresh(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	opts := entry.NewOpts().TTL(20 * time.Millisecond).SWR(500 * time.Millisecond).Build()
	require.NoError(t, m.Set(ctx, key.String("k"), "old-value", opts))

	time.Sleep(40 * time.Millisecond) // now stale

	refreshed := make(chan struct{})
	loader := func(ctx context.Context) (string, error) {
		defer close(refreshed)
		return "new-value", nil
	}

	res, err := m.GetOrCompute(ctx, key.String("k"), loader, opts)
	require.NoError(t, err)
	assert.True(t, res.IsStale())
	v, _ := res.Value()
	assert.Equal(t, "old-value", v, "stale read should return immediately with the old value")

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("background refresh never ran")
	}

	time.Sleep(20 * time.Millisecond) // let the refresh's store complete
	res2, err := m.Get(ctx, key.String("k"))
	require.NoError(t, err)
	v2, _ := res2.Value()
	assert.Equal(t, "new-value", v2)
}

func TestNegativeCacheHit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Set(ctx, key.String("missing-id"), "", entry.NewOpts().TTL(time.Minute).Negative().Build()))

	res, err := m.Get(ctx, key.String("missing-id"))
	require.NoError(t, err)
	assert.True(t, res.IsNegative())
	assert.False(t, res.IsHit())
	assert.False(t, res.IsUsable())
	_, ok := res.Value()
	assert.False(t, ok, "a negative hit carries no value, same as a miss")
}

func TestApplyInvalidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Set(ctx, key.String("parent"), "p", entry.NewOpts().TTL(time.Minute).Build()))
	require.NoError(t, m.Set(ctx, key.String("child"), "c", entry.NewOpts().TTL(time.Minute).DependsOn("parent").Build()))
	require.NoError(t, m.Set(ctx, key.String("tagged"), "t", entry.NewOpts().TTL(time.Minute).Tag("sessions").Build()))

	// A remote "key:" message cascades like a local invalidation.
	msg, ok := backend.ParseInvalidation("key:parent")
	require.True(t, ok)
	require.NoError(t, m.ApplyInvalidation(ctx, msg))
	res, _ := m.Get(ctx, key.String("parent"))
	assert.True(t, res.IsMiss())
	res, _ = m.Get(ctx, key.String("child"))
	assert.True(t, res.IsMiss())

	msg, ok = backend.ParseInvalidation("tag:sessions")
	require.True(t, ok)
	require.NoError(t, m.ApplyInvalidation(ctx, msg))
	res, _ = m.Get(ctx, key.String("tagged"))
	assert.True(t, res.IsMiss())

	err := m.ApplyInvalidation(ctx, backend.Invalidation{Kind: backend.InvalidatePattern, Value: "user:*"})
	assert.ErrorIs(t, err, cerr.ErrUnsupported)
}

func TestGroupInvalidateAll(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	g := m.Group("sessions")

	require.NoError(t, g.Set(ctx, "s1", "alice", entry.NewOpts().TTL(time.Minute).Build()))
	require.NoError(t, g.Set(ctx, "s2", "bob", entry.NewOpts().TTL(time.Minute).Build()))

	keys, err := g.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	n, err := g.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	res, _ := g.Get(ctx, "s1")
	assert.True(t, res.IsMiss())
}

func TestReadThroughNotFoundBecomesAbsent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	loader := func(ctx context.Context, id string) (string, error) {
		return "", cerr.NotFound("missing-id")
	}
	rt := NewReadThrough[string, string](m, loader, func(id string) key.CacheKey { return key.String(id) }, entry.NewOpts().TTL(time.Minute).Build())

	_, ok, err := rt.Get(ctx, "missing-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadThroughNilKeyFnDefaults(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	loader := func(ctx context.Context, id int) (string, error) {
		return "loaded", nil
	}
	rt := NewReadThrough[int, string](m, loader, nil, entry.NewOpts().TTL(time.Minute).Build())

	v, ok, err := rt.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "loaded", v)

	res, err := m.Get(ctx, key.String("7"))
	require.NoError(t, err)
	assert.True(t, res.IsHit(), "the stringified K is the cache key")
}

func TestReadThroughHit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	calls := 0
	loader := func(ctx context.Context, id string) (string, error) {
		calls++
		return "value-for-" + id, nil
	}
	rt := NewReadThrough[string, string](m, loader, func(id string) key.CacheKey { return key.String(id) }, entry.NewOpts().TTL(time.Minute).Build())

	v, ok, err := rt.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value-for-42", v)

	v2, ok2, err := rt.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok2)
	assert.Equal(t, "value-for-42", v2)
	assert.Equal(t, 1, calls, "second read should be served from cache, not the loader")
}
