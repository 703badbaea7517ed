package entry

import "time"

// Options carries every per-write setting a caller can attach to a Set:
// expiration, staleness window, tags, dependency edges, a cost hint,
// coalescing/ETag/negative-caching flags, and an optimistic-concurrency
// version check.
type Options struct {
	TTL                  *time.Duration
	StaleWhileRevalidate *time.Duration
	Tags                 []string
	Dependencies         []string
	Cost                 *uint64
	ETag                 *string
	Negative             bool
	Coalesce             bool
	IfVersion            *uint64
}

// Opts is the fluent Options builder:
// NewOpts().TTL(d).Tag("x").DependsOn("y").Build().
type Opts struct {
	o Options
}

// NewOpts starts a fresh builder.
func NewOpts() *Opts { return &Opts{} }

func (b *Opts) TTL(d time.Duration) *Opts {
	b.o.TTL = &d
	return b
}

func (b *Opts) SWR(d time.Duration) *Opts {
	b.o.StaleWhileRevalidate = &d
	return b
}

func (b *Opts) Tags(tags ...string) *Opts {
	b.o.Tags = append(b.o.Tags, tags...)
	return b
}

func (b *Opts) Tag(tag string) *Opts {
	b.o.Tags = append(b.o.Tags, tag)
	return b
}

func (b *Opts) DependsOn(keys ...string) *Opts {
	b.o.Dependencies = append(b.o.Dependencies, keys...)
	return b
}

func (b *Opts) Cost(c uint64) *Opts {
	b.o.Cost = &c
	return b
}

func (b *Opts) ETag(tag string) *Opts {
	b.o.ETag = &tag
	return b
}

func (b *Opts) Negative() *Opts {
	b.o.Negative = true
	return b
}

// EarlyRefresh is an alias for Coalesced: both set Options.Coalesce.
// The manager does not read that flag; GetOrCompute coalesces callers
// and refreshes stale entries in the background whether or not it is set.
func (b *Opts) EarlyRefresh() *Opts {
	return b.Coalesced()
}

func (b *Opts) Coalesced() *Opts {
	b.o.Coalesce = true
	return b
}

func (b *Opts) IfVersion(v uint64) *Opts {
	b.o.IfVersion = &v
	return b
}

// Build finalizes the builder into an immutable-by-convention Options value.
func (b *Opts) Build() Options { return b.o }

// FromTTL converts a bare duration into Options, the common case of a
// write that only wants an expiry.
func FromTTL(ttl time.Duration) Options {
	return Options{TTL: &ttl}
}

// CostOrDefault returns the entry cost, defaulting to 1 when unset —
// the same default the memory backend applies on Set.
func (o Options) CostOrDefault() uint64 {
	if o.Cost == nil {
		return 1
	}
	return *o.Cost
}
