// Package coalesce deduplicates concurrent requests for the same key:
// DoRequest collapses simultaneous callers into one leader execution
// via golang.org/x/sync/singleflight, and TrySpawnRefresh
// deduplicates detached stale-while-revalidate background refreshes
// with a sync.Map-backed "in flight" set, since singleflight alone
// only dedups the synchronous call path.
package coalesce

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Coalescer is safe for concurrent use and cheap to copy: it only
// holds pointers to shared state, so copies share the same in-flight
// calls and refresh set.
type Coalescer struct {
	group      *singleflight.Group
	refreshing *sync.Map // key -> struct{}
}

// New builds an empty Coalescer.
func New() *Coalescer {
	return &Coalescer{
		group:      &singleflight.Group{},
		refreshing: &sync.Map{},
	}
}

// DoRequest runs fn for the first caller of a given key and fans its
// result out to every concurrent caller of the same key. A caller
// arriving after the leader finishes starts a new wave.
func (c *Coalescer) DoRequest(key string, fn func() (any, error)) (any, error) {
	v, err, _ := c.group.Do(key, fn)
	return v, err
}

// TrySpawnRefresh starts fn in the background for key unless a
// refresh for that key is already running, returning false without
// starting a second goroutine in that case.
func (c *Coalescer) TrySpawnRefresh(key string, fn func()) bool {
	if _, loaded := c.refreshing.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	go func() {
		defer c.refreshing.Delete(key)
		fn()
	}()
	return true
}
