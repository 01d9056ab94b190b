package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes expansion counters and timings to Prometheus.
// A nil *Metrics is valid and records nothing, which keeps tests quiet.
type Metrics struct {
	expansions *prometheus.CounterVec
	cacheHits  prometheus.Counter
	published  prometheus.Counter
	duration   prometheus.Histogram
	queueDepth prometheus.GaugeFunc
}

func NewMetrics(queueDepth func() float64) *Metrics {
	return &Metrics{
		expansions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "macrod_expansions_total",
			Help: "Document expansions by result.",
		}, []string{"result"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "macrod_cache_hits_total",
			Help: "Expansions served from the cache.",
		}),
		published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "macrod_documents_published_total",
			Help: "Documents published downstream.",
		}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "macrod_expansion_duration_seconds",
			Help:    "Time to load and expand one document.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "macrod_batch_queue_depth",
			Help: "Batch jobs waiting for a worker.",
		}, queueDepth),
	}
}

func (m *Metrics) ObserveExpansion(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.expansions.WithLabelValues("error").Inc()
		return
	}
	m.expansions.WithLabelValues("ok").Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) ObservePublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}
