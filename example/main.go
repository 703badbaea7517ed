/*
Command example demonstrates chronocache end to end: an in-memory
backend wrapped by the manager façade, a tagged group, dependency
cascade invalidation, and stale-while-revalidate background refresh.

================================================================================
WHAT THIS PROGRAM SHOWS
================================================================================

1. Building a memory backend and a Manager[T] on top of it.
2. Writing a value with a TTL + a short stale-while-revalidate window.
3. Reading it back, then reading it again after it's gone stale to
   observe the background refresh kick in exactly once.
4. Tagging a group of keys and invalidating the whole group at once.
5. A dependency edge: invalidating a "parent" key cascades to a
   "child" key that declared a dependency on it.
*/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chronocache/chronocache/backend/memory"
	"github.com/chronocache/chronocache/entry"
	"github.com/chronocache/chronocache/key"
	"github.com/chronocache/chronocache/manager"
	"github.com/chronocache/chronocache/metrics"
	"github.com/chronocache/chronocache/serialize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	requestID := uuid.New().String()
	log.Info().Str("request_id", requestID).Msg("starting chronocache example")

	ctx := context.Background()

	mem := memory.New(memory.DefaultConfig())
	defer mem.Stop()

	cfg := manager.DefaultConfig()
	cfg.Namespace = "demo"
	m := manager.NewWith[string](mem, serialize.JSON{}, metrics.Noop{}, cfg)

	// 1. Basic set/get.
	ttl := 2 * time.Second
	swr := 3 * time.Second
	opts := entry.NewOpts().TTL(ttl).SWR(swr).Build()

	if err := m.Set(ctx, key.String("greeting"), "hello, chronocache", opts); err != nil {
		log.Fatal().Err(err).Msg("set failed")
	}

	res, err := m.Get(ctx, key.String("greeting"))
	if err != nil {
		log.Fatal().Err(err).Msg("get failed")
	}
	v, _ := res.Value()
	fmt.Println("fresh read:", v, "kind:", res.Kind)

	// 2. Let it go stale and trigger a background refresh.
	time.Sleep(ttl + 200*time.Millisecond)
	refreshed := make(chan struct{})
	loader := func(ctx context.Context) (string, error) {
		defer close(refreshed)
		return "hello again, refreshed", nil
	}
	res, err = m.GetOrCompute(ctx, key.String("greeting"), loader, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("get-or-compute failed")
	}
	v, _ = res.Value()
	fmt.Println("stale read (pre-refresh):", v, "kind:", res.Kind)
	select {
	case <-refreshed:
	case <-time.After(time.Second):
	}

	// 3. Tagged group invalidation.
	group := m.Group("sessions")
	_ = group.Set(ctx, "session-1", "alice", entry.NewOpts().TTL(time.Minute).Build())
	_ = group.Set(ctx, "session-2", "bob", entry.NewOpts().TTL(time.Minute).Build())
	n, err := group.InvalidateAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("group invalidate failed")
	}
	fmt.Println("sessions invalidated:", n)

	// 4. Dependency cascade: "child" depends on "parent".
	parentOpts := entry.NewOpts().TTL(time.Minute).Build()
	childOpts := entry.NewOpts().TTL(time.Minute).DependsOn("demo:parent").Build()
	_ = m.Set(ctx, key.String("parent"), "parent-value", parentOpts)
	_ = m.Set(ctx, key.String("child"), "child-value", childOpts)

	count, err := m.Invalidate(ctx, key.String("parent"))
	if err != nil {
		log.Fatal().Err(err).Msg("cascade invalidate failed")
	}
	fmt.Println("cascade invalidated:", count, "entries")

	stats, _ := m.Stats(ctx)
	fmt.Printf("final stats: %+v (hit ratio %.2f)\n", stats, stats.HitRatio())
}
