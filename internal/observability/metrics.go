package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cocci_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the compiler.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Compilation metrics.
	CompileRuns         *prometheus.CounterVec // labels: outcome={success,error}
	CompileDuration     prometheus.Histogram
	SourceFiles         *prometheus.CounterVec // labels: status={loaded,missing,schema_error}
	ReconcileOutcomes   *prometheus.CounterVec // labels: outcome={averaged,minimum,single,empty}
	BackfilledRows      prometheus.Counter
	MissingRegionTotals prometheus.Counter
	CompiledRows        prometheus.Gauge
	StationsLoaded      prometheus.Gauge
	TableCache          *prometheus.CounterVec // labels: result={hit,miss}

	// Output metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all compiler metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a compilation run is in progress, 0 otherwise.",
		}),
		CompileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_runs_total",
			Help:      "Compilation runs by outcome.",
		}, []string{"outcome"}),
		CompileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of a complete compilation run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SourceFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_files_total",
			Help:      "Expected source files by load status.",
		}, []string{"status"}),
		ReconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_outcomes_total",
			Help:      "Reconciled (entity, period) pairs by resolution.",
		}, []string{"outcome"}),
		BackfilledRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfilled_rows_total",
			Help:      "Rows synthesized from region totals.",
		}),
		MissingRegionTotals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_region_totals_total",
			Help:      "Region and period pairs skipped because the region total was absent.",
		}),
		CompiledRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compiled_rows",
			Help:      "Rows in the most recent compiled table.",
		}),
		StationsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_loaded",
			Help:      "Station records in the most recently loaded registry.",
		}),
		TableCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_cache_total",
			Help:      "Parsed table cache lookups by result.",
		}, []string{"result"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Compiled table writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when coordinate region lookup is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.CompileRuns,
		m.CompileDuration,
		m.SourceFiles,
		m.ReconcileOutcomes,
		m.BackfilledRows,
		m.MissingRegionTotals,
		m.CompiledRows,
		m.StationsLoaded,
		m.TableCache,
		m.SinkWrites,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
