// Package backend defines the capability-based backend contract every
// storage implementation composes from: Base is mandatory; Tagged,
// Dependencies, and Distributed are optional and probed at runtime
// with a type assertion.
package backend

import (
	"context"
	"time"

	"github.com/chronocache/chronocache/entry"
)

// Base is the capability every backend must implement: byte-oriented
// get/set/delete plus the batch and introspection operations every
// manager relies on unconditionally.
type Base interface {
	Get(ctx context.Context, key string) (*entry.Entry[[]byte], error)
	Set(ctx context.Context, key string, value []byte, opts entry.Options) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)

	GetMany(ctx context.Context, keys []string) ([]*entry.Entry[[]byte], error)
	SetMany(ctx context.Context, items []SetItem) error
	DeleteMany(ctx context.Context, keys []string) (uint64, error)

	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Len(ctx context.Context) (int, error)
}

// SetItem is one entry of a SetMany batch.
type SetItem struct {
	Key     string
	Value   []byte
	Options entry.Options
}

// Tagged is the optional tag-index capability: lookups and bulk
// deletes by tag, backing the manager's DeleteByTag/GetKeysByTag.
type Tagged interface {
	GetByTag(ctx context.Context, tag string) ([]string, error)
	DeleteByTag(ctx context.Context, tag string) (uint64, error)
}

// Dependencies is the optional dependency-graph capability backing
// cascade invalidation. A backend implementing it must track, for
// each key, which other keys declared it as a dependency via
// entry.Options.Dependencies.
type Dependencies interface {
	GetDependents(ctx context.Context, key string) ([]string, error)
}

// Distributed is the optional cross-process capability: an advisory
// lock plus a best-effort invalidation broadcast. No concrete
// implementation ships in this module; it exists so a caller can
// probe for it the same way it probes for Tagged/Dependencies.
// Invalidation messages use the wire format
// defined by Invalidation; the subscription channel is closed when ctx
// is cancelled or the transport drops.
type Distributed interface {
	// AcquireLock returns an opaque token that proves lock ownership,
	// or wraps cerr.ErrLockConflict when another holder has it.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// ReleaseLock returns false when token no longer owns the lock
	// (expired or taken over), which callers treat as already-released.
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	PublishInvalidation(ctx context.Context, msgs []Invalidation) error
	SubscribeInvalidations(ctx context.Context) (<-chan Invalidation, error)
}

// Reserved key prefixes a remote backend uses for its index records,
// relative to whatever key prefix the backend itself is configured
// with. Kept here so every implementation agrees on them.
const (
	TagIndexPrefix = "__tags__:"
	DepIndexPrefix = "__deps__:"
)

// Stats aggregates the counters every backend exposes.
type Stats struct {
	Hits        uint64
	Misses      uint64
	StaleHits   uint64
	Writes      uint64
	Deletes     uint64
	Evictions   uint64
	Size        int
	MemoryBytes int
}

// HitRatio is Hits / (Hits + Misses), 0 when there have been no lookups.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// TotalRequests is every Get-class operation the backend has served.
func (s Stats) TotalRequests() uint64 {
	return s.Hits + s.Misses + s.StaleHits
}

// Merge combines two Stats snapshots, field by field, the way the
// multi-tier backend sums L1+L2 for hits/stale_hits/evictions.
func (s Stats) Merge(other Stats) Stats {
	return Stats{
		Hits:        s.Hits + other.Hits,
		Misses:      s.Misses + other.Misses,
		StaleHits:   s.StaleHits + other.StaleHits,
		Writes:      s.Writes + other.Writes,
		Deletes:     s.Deletes + other.Deletes,
		Evictions:   s.Evictions + other.Evictions,
		Size:        s.Size + other.Size,
		MemoryBytes: s.MemoryBytes + other.MemoryBytes,
	}
}
