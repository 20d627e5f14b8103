package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cache collectors. A nil *Metrics records nothing.
type Metrics struct {
	hits         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	computations *prometheus.CounterVec
	lockTimeouts *prometheus.CounterVec
	computeTime  *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg. Series are
// labelled by feature, the first segment of the key.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache reads served from the store.",
		}, []string{"feature"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache reads that found no entry.",
		}, []string{"feature"}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "computations_total",
			Help: "Compute function invocations by result.",
		}, []string{"feature", "result"}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lock_timeouts_total",
			Help: "Misses that gave up waiting for the compute lock.",
		}, []string{"feature"}),
		computeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cache", Name: "compute_duration_seconds",
			Help:    "Time spent in compute functions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"feature"}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.computations, m.lockTimeouts, m.computeTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) hit(key string) {
	if m != nil {
		m.hits.WithLabelValues(Feature(key)).Inc()
	}
}

func (m *Metrics) miss(key string) {
	if m != nil {
		m.misses.WithLabelValues(Feature(key)).Inc()
	}
}

func (m *Metrics) lockTimeout(key string) {
	if m != nil {
		m.lockTimeouts.WithLabelValues(Feature(key)).Inc()
	}
}

func (m *Metrics) computed(key string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	feature := Feature(key)
	m.computations.WithLabelValues(feature, result).Inc()
	m.computeTime.WithLabelValues(feature).Observe(d.Seconds())
}
