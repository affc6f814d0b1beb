package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks pipeline activity. Counters are exported to Prometheus
// through Registry; the run status fields back the /health endpoint.
type Metrics struct {
	mu sync.RWMutex

	Registry *prometheus.Registry

	itemsTotal      *prometheus.CounterVec
	rewriteFailures prometheus.Counter
	imageFallbacks  prometheus.Counter
	demotedTotal    prometheus.Counter
	runDuration     prometheus.Histogram
	lastRunUnix     prometheus.Gauge

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "items_total",
			Help:      "Feed items handled, by outcome.",
		}, []string{"outcome"}),
		rewriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "rewrite_failures_total",
			Help:      "Items dropped because the rewrite failed.",
		}),
		imageFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "image_fallbacks_total",
			Help:      "Articles that got a catalog image instead of a generated one.",
		}),
		demotedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "breaking_demoted_total",
			Help:      "Articles removed from the breaking window.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "newshub",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 2400},
		}),
		lastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "newshub",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
		IsHealthy: true,
	}
	m.Registry.MustRegister(m.itemsTotal, m.rewriteFailures, m.imageFallbacks, m.demotedTotal, m.runDuration, m.lastRunUnix)
	return m
}

// Outcome labels for IncItem.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

func (m *Metrics) IncItem(outcome string) {
	m.itemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRewriteFailure() {
	m.rewriteFailures.Inc()
}

func (m *Metrics) IncImageFallback() {
	m.imageFallbacks.Inc()
}

func (m *Metrics) AddDemoted(n int) {
	m.demotedTotal.Add(float64(n))
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
}

func (m *Metrics) SetLastRun() {
	now := time.Now()
	m.lastRunUnix.Set(float64(now.Unix()))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = now
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"runs":                       m.ProcessingCount,
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
	if !m.LastRunTime.IsZero() {
		stats["last_run_time"] = m.LastRunTime.Format(time.RFC3339)
	}
	if !m.LastErrorTime.IsZero() {
		stats["last_error_time"] = m.LastErrorTime.Format(time.RFC3339)
	}
	return stats
}
