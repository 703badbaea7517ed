// Package metrics defines the pluggable metrics sink the manager reports
// through. Tier, Operation and EvictionReason are closed enums so a
// Prometheus label set stays bounded.
package metrics

import "time"

type Tier string

const (
	TierL1Memory    Tier = "l1_memory"
	TierL2Remote    Tier = "l2_remote"
	TierDistributed Tier = "distributed"
)

type Operation string

const (
	OpGet         Operation = "get"
	OpSet         Operation = "set"
	OpDelete      Operation = "delete"
	OpInvalidate  Operation = "invalidate"
	OpSerialize   Operation = "serialize"
	OpDeserialize Operation = "deserialize"
)

type EvictionReason string

const (
	EvictionCapacity   EvictionReason = "capacity"
	EvictionExpired    EvictionReason = "expired"
	EvictionInvalidate EvictionReason = "invalidate"
)

// Metrics is the sink the manager reports hits/misses/latency/evictions
// through. Noop satisfies it at zero cost; Prometheus wires it to the
// real ecosystem client.
type Metrics interface {
	RecordHit(key string, tier Tier)
	RecordMiss(key string)
	RecordStaleHit(key string)
	RecordLatency(op Operation, d time.Duration)
	RecordEviction(reason EvictionReason)
	RecordSize(size, memoryBytes int)
}

// Noop discards everything; the manager's zero-value default.
type Noop struct{}

func (Noop) RecordHit(string, Tier)                 {}
func (Noop) RecordMiss(string)                      {}
func (Noop) RecordStaleHit(string)                  {}
func (Noop) RecordLatency(Operation, time.Duration) {}
func (Noop) RecordEviction(EvictionReason)          {}
func (Noop) RecordSize(int, int)                    {}

var (
	_ Metrics = Noop{}
)
