package monitoring

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Require results
const (
	RequireCached = "cached"
	RequireLoaded = "loaded"
	RequireFailed = "failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Compiler metrics
	CompilationsTotal *prometheus.CounterVec
	CompileDuration   prometheus.Histogram

	// Loader metrics
	RequiresTotal *prometheus.CounterVec

	// Sandbox metrics
	FreezeDuration prometheus.Histogram

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	gatherer prometheus.Gatherer

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	Compilations   int64 `json:"compilations"`
	CompileErrors  int64 `json:"compile_errors"`
	Requires       int64 `json:"requires"`
	CacheHits      int64 `json:"cache_hits"`
	ModuleFailures int64 `json:"module_failures"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// gets a private registry. WriteText works when reg can also gather.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	gatherer, _ := reg.(prometheus.Gatherer)

	return &Metrics{
		gatherer: gatherer,
		CompilationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ddocjs_compilations_total",
				Help: "Total number of function compilations",
			},
			[]string{"result"},
		),
		CompileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ddocjs_compile_duration_seconds",
				Help:    "Function compilation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		RequiresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ddocjs_requires_total",
				Help: "Total number of require calls",
			},
			[]string{"result"},
		),
		FreezeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ddocjs_freeze_duration_seconds",
				Help:    "Time spent deep-freezing sandbox globals",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
	}
}

// RecordCompilation records a compilation attempt. result is "ok" or a
// failure kind.
func (m *Metrics) RecordCompilation(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CompilationsTotal.WithLabelValues(result).Inc()
	m.CompileDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Compilations++
	if result != "ok" {
		m.snapshot.CompileErrors++
	}
	m.mu.Unlock()
}

// RecordRequire records a require call outcome.
func (m *Metrics) RecordRequire(result string) {
	if m == nil {
		return
	}
	m.RequiresTotal.WithLabelValues(result).Inc()

	m.mu.Lock()
	m.snapshot.Requires++
	switch result {
	case RequireCached:
		m.snapshot.CacheHits++
	case RequireFailed:
		m.snapshot.ModuleFailures++
	}
	m.mu.Unlock()
}

// RecordFreeze records the time taken to freeze a sandbox.
func (m *Metrics) RecordFreeze(duration time.Duration) {
	if m == nil {
		return
	}
	m.FreezeDuration.Observe(duration.Seconds())
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// WriteText gathers every metric in the registry and writes it to w in
// the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	if m.gatherer == nil {
		return errors.New("metrics registry cannot be gathered")
	}

	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
