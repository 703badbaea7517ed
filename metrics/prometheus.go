package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus wires Metrics to github.com/prometheus/client_golang:
// counters for hits/misses/stale hits/evictions, a histogram for
// per-operation latency, gauges for size.
type Prometheus struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	staleHits *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	evictions *prometheus.CounterVec
	size      prometheus.Gauge
	memBytes  prometheus.Gauge
}

// NewPrometheus registers its collectors against reg and returns a
// ready Metrics sink. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the default global registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronocache", Name: "hits_total", Help: "Cache hits by tier.",
		}, []string{"tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronocache", Name: "misses_total", Help: "Cache misses.",
		}, []string{}),
		staleHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronocache", Name: "stale_hits_total", Help: "Stale hits served while revalidating.",
		}, []string{}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronocache", Name: "operation_latency_seconds", Help: "Per-operation latency.",
		}, []string{"op"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronocache", Name: "evictions_total", Help: "Evictions by reason.",
		}, []string{"reason"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronocache", Name: "entries", Help: "Current entry count.",
		}),
		memBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronocache", Name: "memory_bytes", Help: "Approximate memory usage.",
		}),
	}
	reg.MustRegister(p.hits, p.misses, p.staleHits, p.latency, p.evictions, p.size, p.memBytes)
	return p
}

func (p *Prometheus) RecordHit(_ string, tier Tier) {
	p.hits.WithLabelValues(string(tier)).Inc()
}

func (p *Prometheus) RecordMiss(string) {
	p.misses.WithLabelValues().Inc()
}

func (p *Prometheus) RecordStaleHit(string) {
	p.staleHits.WithLabelValues().Inc()
}

func (p *Prometheus) RecordLatency(op Operation, d time.Duration) {
	p.latency.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (p *Prometheus) RecordEviction(reason EvictionReason) {
	p.evictions.WithLabelValues(string(reason)).Inc()
}

func (p *Prometheus) RecordSize(size, memoryBytes int) {
	p.size.Set(float64(size))
	p.memBytes.Set(float64(memoryBytes))
}

var _ Metrics = (*Prometheus)(nil)
