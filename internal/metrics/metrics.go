package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder tracks aggregation and matching runs using Prometheus.
type Recorder struct {
	registry     *prometheus.Registry
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	observations prometheus.Gauge
	groups       prometheus.Gauge
	savings      *prometheus.CounterVec
	imported     *prometheus.CounterVec
}

// New creates a recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebench_runs_total",
				Help: "Total number of batch runs by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratebench_run_duration_seconds",
				Help:    "Batch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratebench_aggregation_observations",
			Help: "Observations read by the last aggregation run",
		}),
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratebench_aggregation_groups",
			Help: "Groups written by the last aggregation run",
		}),
		savings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebench_savings_records_total",
				Help: "Savings records produced by matching, by cache source",
			},
			[]string{"source"},
		),
		imported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebench_imported_rows_total",
				Help: "Rows imported from uploaded files",
			},
			[]string{"dataset"},
		),
	}

	reg.MustRegister(r.runsTotal, r.runDuration, r.observations, r.groups, r.savings, r.imported)
	return r
}

// ObserveRun records the outcome and latency of a run of the given kind.
func (r *Recorder) ObserveRun(kind string, started time.Time, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.runsTotal.WithLabelValues(kind, status).Inc()
	r.runDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// SetAggregation stores the size of the last aggregation run.
func (r *Recorder) SetAggregation(observations, groups int) {
	if r == nil {
		return
	}
	r.observations.Set(float64(observations))
	r.groups.Set(float64(groups))
}

// AddSavings counts savings records served from source ("store" or "cache").
func (r *Recorder) AddSavings(source string, n int) {
	if r == nil {
		return
	}
	r.savings.WithLabelValues(source).Add(float64(n))
}

// AddImported counts imported rows for a dataset ("market" or "user_rates").
func (r *Recorder) AddImported(dataset string, n int) {
	if r == nil {
		return
	}
	r.imported.WithLabelValues(dataset).Add(float64(n))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
