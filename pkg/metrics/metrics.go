// Package metrics is a thin abstraction over Prometheus so that every cache
// in this module can be used with or without metrics, following the same
// shape as the teacher's pkg/metrics.go: a Sink interface, a no-op
// implementation used by default, and a Prometheus-backed implementation
// built by New from a *prometheus.Registry and enabled by passing that Sink
// to the owning cache's WithMetrics option. Hot-path code (Get/Put) never pays for a label
// lookup when metrics are disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the internal interface every cache package programs against.
type Sink interface {
	IncHit(cache string)
	IncMiss(cache string)
	SetDirtyCount(cache string, n int)
	IncFlush(cache string)
	ObserveFlushDuration(cache string, d time.Duration)
	SetPendingMessages(n int)
	IncLockViolation(level string)
}

type noopSink struct{}

func (noopSink) IncHit(string)                        {}
func (noopSink) IncMiss(string)                       {}
func (noopSink) SetDirtyCount(string, int)            {}
func (noopSink) IncFlush(string)                      {}
func (noopSink) ObserveFlushDuration(string, time.Duration) {}
func (noopSink) SetPendingMessages(int)               {}
func (noopSink) IncLockViolation(string)               {}

// Noop is the default Sink used when no registry is supplied.
var Noop Sink = noopSink{}

// promSink is the Prometheus-backed Sink.
type promSink struct {
	hits             *prometheus.CounterVec
	misses           *prometheus.CounterVec
	dirty            *prometheus.GaugeVec
	flushes          *prometheus.CounterVec
	flushDuration    *prometheus.HistogramVec
	pendingMessages  prometheus.Gauge
	lockViolations    *prometheus.CounterVec
}

// New constructs a Prometheus-backed Sink registered against reg. Passing a
// nil reg returns the no-op Sink, mirroring the teacher's
// newMetricsSink(shardCount, reg) factory.
func New(reg *prometheus.Registry) Sink {
	if reg == nil {
		return Noop
	}
	cacheLabel := []string{"cache"}
	p := &promSink{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacewars_cache", Name: "hits_total", Help: "Cache hits.",
		}, cacheLabel),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacewars_cache", Name: "misses_total", Help: "Cache misses.",
		}, cacheLabel),
		dirty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spacewars_cache", Name: "dirty_entries", Help: "Current size of each cache's dirty set.",
		}, cacheLabel),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacewars_cache", Name: "flushes_total", Help: "Completed flush-to-database operations.",
		}, cacheLabel),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spacewars_cache", Name: "flush_duration_seconds", Help: "Flush-to-database latency.",
			Buckets: prometheus.DefBuckets,
		}, cacheLabel),
		pendingMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spacewars_cache", Name: "pending_messages", Help: "Messages awaiting asynchronous store insert.",
		}),
		lockViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spacewars_cache", Name: "lock_order_violations_total", Help: "Rejected out-of-order lock acquisitions.",
		}, []string{"level"}),
	}
	reg.MustRegister(p.hits, p.misses, p.dirty, p.flushes, p.flushDuration, p.pendingMessages, p.lockViolations)
	return p
}

func (p *promSink) IncHit(cache string)  { p.hits.WithLabelValues(cache).Inc() }
func (p *promSink) IncMiss(cache string) { p.misses.WithLabelValues(cache).Inc() }
func (p *promSink) SetDirtyCount(cache string, n int) {
	p.dirty.WithLabelValues(cache).Set(float64(n))
}
func (p *promSink) IncFlush(cache string) { p.flushes.WithLabelValues(cache).Inc() }
func (p *promSink) ObserveFlushDuration(cache string, d time.Duration) {
	p.flushDuration.WithLabelValues(cache).Observe(d.Seconds())
}
func (p *promSink) SetPendingMessages(n int) { p.pendingMessages.Set(float64(n)) }
func (p *promSink) IncLockViolation(level string) {
	p.lockViolations.WithLabelValues(level).Inc()
}
