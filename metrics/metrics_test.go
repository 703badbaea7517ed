package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopSatisfiesInterface(t *testing.T) {
	var m Metrics = Noop{}
	m.RecordHit("k", TierL1Memory)
	m.RecordMiss("k")
	m.RecordStaleHit("k")
	m.RecordLatency(OpGet, time.Millisecond)
	m.RecordEviction(EvictionExpired)
	m.RecordSize(1, 2)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			total += metricCounterOrGauge(m)
		}
		return total
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}

func metricCounterOrGauge(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	if g := m.GetGauge(); g != nil {
		return g.GetValue()
	}
	return 0
}

func TestPrometheusRecordsHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.RecordHit("k1", TierL1Memory)
	p.RecordHit("k2", TierL2Remote)
	p.RecordMiss("k3")
	p.RecordStaleHit("k4")
	p.RecordEviction(EvictionCapacity)
	p.RecordLatency(OpGet, 5*time.Millisecond)
	p.RecordSize(10, 2048)

	assert.Equal(t, float64(2), counterValue(t, reg, "chronocache_hits_total"))
	assert.Equal(t, float64(1), counterValue(t, reg, "chronocache_misses_total"))
	assert.Equal(t, float64(1), counterValue(t, reg, "chronocache_stale_hits_total"))
	assert.Equal(t, float64(1), counterValue(t, reg, "chronocache_evictions_total"))
	assert.Equal(t, float64(10), counterValue(t, reg, "chronocache_entries"))
	assert.Equal(t, float64(2048), counterValue(t, reg, "chronocache_memory_bytes"))
}
