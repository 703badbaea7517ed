package memory

import (
	"sync"
	"time"
)

// timeWheel is a ring-buffer expiration index: each tick advances a
// cursor by one bucket, and a key whose ttl rounds up to N ticks lands
// in bucket (cursor+N+1)%len(buckets), so it is never drained before
// its ttl has elapsed. Scheduling, rescheduling and
// removal are O(1) thanks to the reverse key->bucket map.
type timeWheel struct {
	mu       sync.Mutex
	tick     time.Duration
	buckets  []map[string]struct{}
	cursor   int
	keyToBkt map[string]int
}

// newTimeWheel sizes the ring so that maxTTL fits within it: at least
// 60 buckets, or enough to cover maxTTL at the given tick resolution,
// whichever is larger.
func newTimeWheel(tick, maxTTL time.Duration) *timeWheel {
	if tick <= 0 {
		tick = time.Second
	}
	n := int(maxTTL/tick) + 1
	if n < 60 {
		n = 60
	}
	buckets := make([]map[string]struct{}, n)
	for i := range buckets {
		buckets[i] = make(map[string]struct{})
	}
	return &timeWheel{
		tick:     tick,
		buckets:  buckets,
		keyToBkt: make(map[string]int),
	}
}

// schedule places key into the bucket ceil(ttl/tick)+1 slots ahead of
// the cursor, removing any prior placement for the same key first so a
// re-Set reschedules rather than double-books it.
func (w *timeWheel) schedule(key string, ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(key)

	ticks := int((ttl+w.tick-1)/w.tick) + 1
	if ticks < 1 {
		ticks = 1
	}
	if ticks >= len(w.buckets) {
		ticks = len(w.buckets) - 1
	}
	idx := (w.cursor + ticks) % len(w.buckets)
	w.buckets[idx][key] = struct{}{}
	w.keyToBkt[key] = idx
}

// remove drops key from the wheel if present; a no-op otherwise
// (e.g. entries written without a TTL were never scheduled).
func (w *timeWheel) remove(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(key)
}

func (w *timeWheel) removeLocked(key string) {
	if idx, ok := w.keyToBkt[key]; ok {
		delete(w.buckets[idx], key)
		delete(w.keyToBkt, key)
	}
}

// advance moves the cursor forward one bucket and returns the keys
// that landed there, clearing the bucket for reuse. The caller
// decides whether each key is actually expired (TTL index scheduling
// is approximate to the tick resolution; it's a candidate list, not
// an authoritative one).
func (w *timeWheel) advance() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cursor = (w.cursor + 1) % len(w.buckets)
	bucket := w.buckets[w.cursor]
	if len(bucket) == 0 {
		return nil
	}
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
		delete(w.keyToBkt, k)
	}
	w.buckets[w.cursor] = make(map[string]struct{})
	return keys
}

// len reports how many keys the wheel is currently tracking.
func (w *timeWheel) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.keyToBkt)
}
