package memory

import (
	"hash/fnv"
	"math"
	"sync/atomic"
)

// Bloom is a lock-free bloom filter used as an optional negative-lookup
// fast path ahead of the shard lock: a miss here is authoritative, a
// hit still requires the real map lookup. Atomic bit array with
// double hashing (h(i) = h1 + i*h2), sized by the standard m/k formulas.
type Bloom struct {
	bits []uint64
	m    uint64
	k    uint64
}

// NewBloom sizes a filter for expectedN items at falsePositiveRate,
// using m = ceil(-n*ln(p) / ln(2)^2) and k = ceil((m/n) * ln(2))
// clamped to [1, 16].
func NewBloom(expectedN int, falsePositiveRate float64) *Bloom {
	if expectedN < 1 {
		expectedN = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	n := float64(expectedN)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := math.Ceil((m / n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	words := (uint64(m) + 63) / 64
	if words < 1 {
		words = 1
	}
	return &Bloom{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    uint64(k),
	}
}

func (b *Bloom) hashes(key string) (h1, h2 uint64) {
	f1 := fnv.New64a()
	_, _ = f1.Write([]byte(key))
	h1 = f1.Sum64()

	f2 := fnv.New64()
	_, _ = f2.Write([]byte(key))
	h2 = f2.Sum64() | 1 // keep h2 odd so it never degenerates to 0 across all m

	return h1, h2
}

// Add records key as present.
func (b *Bloom) Add(key string) {
	h1, h2 := b.hashes(key)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		atomicSetBit(b.bits, bit)
	}
}

// MightContain reports false only when key is definitely absent; true
// may be a false positive.
func (b *Bloom) MightContain(key string) bool {
	h1, h2 := b.hashes(key)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		if !atomicGetBit(b.bits, bit) {
			return false
		}
	}
	return true
}

func atomicSetBit(words []uint64, bit uint64) {
	word := bit / 64
	mask := uint64(1) << (bit % 64)
	for {
		old := atomic.LoadUint64(&words[word])
		if old&mask != 0 {
			return
		}
		if atomic.CompareAndSwapUint64(&words[word], old, old|mask) {
			return
		}
	}
}

func atomicGetBit(words []uint64, bit uint64) bool {
	word := bit / 64
	mask := uint64(1) << (bit % 64)
	return atomic.LoadUint64(&words[word])&mask != 0
}
