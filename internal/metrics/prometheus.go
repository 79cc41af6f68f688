package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all shaping engine metrics.
type Registry struct {
	// Command emission
	CommandsEmitted *prometheus.CounterVec
	DispatchErrors  *prometheus.CounterVec

	// Batch engine
	BatchCommits       prometheus.Counter
	BatchCommitSeconds prometheus.Histogram
	BatchCommandCount  prometheus.Histogram

	// Topology/materialization state
	CircuitsByState *prometheus.GaugeVec
	SitesTotal      prometheus.Gauge
	CircuitsTotal   prometheus.Gauge

	// Activity loop
	ActivityMaterializations prometheus.Counter
	IdlePrunes               prometheus.Counter

	// Override file
	OverrideIOErrors *prometheus.CounterVec
	OverrideReloads  prometheus.Counter
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.CommandsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bakery_tc_commands_emitted_total",
		Help: "Total tc argument vectors emitted by the encoder, by command kind",
	}, []string{"kind"})

	r.DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bakery_tc_dispatch_errors_total",
		Help: "Total tc invocations that returned a non-zero exit",
	}, []string{"kind"})

	r.BatchCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakery_batch_commits_total",
		Help: "Total batches committed",
	})

	r.BatchCommitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bakery_batch_commit_seconds",
		Help:    "Wall-clock duration of CommitBatch, including tc dispatch",
		Buckets: prometheus.DefBuckets,
	})

	r.BatchCommandCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bakery_batch_command_count",
		Help:    "Number of tc argument vectors emitted per committed batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	r.CircuitsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bakery_circuits_by_state",
		Help: "Number of circuits currently in each materialization state",
	}, []string{"state"})

	r.SitesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bakery_sites_total",
		Help: "Total sites in the committed topology",
	})

	r.CircuitsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bakery_circuits_total",
		Help: "Total circuits in the committed topology",
	})

	r.ActivityMaterializations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakery_activity_materializations_total",
		Help: "Total circuits materialized in response to traffic activity",
	})

	r.IdlePrunes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakery_idle_prunes_total",
		Help: "Total circuits pruned back for going idle",
	})

	r.OverrideIOErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bakery_override_io_errors_total",
		Help: "Total errors loading or saving the override file",
	}, []string{"op"})

	r.OverrideReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bakery_override_reloads_total",
		Help: "Total successful override file reloads",
	})

	return r
}

// RecordCommandsEmitted increments the per-kind emitted-command counter.
func (r *Registry) RecordCommandsEmitted(kind string, count int) {
	r.CommandsEmitted.WithLabelValues(kind).Add(float64(count))
}

// RecordDispatchError increments the per-kind dispatch-error counter.
func (r *Registry) RecordDispatchError(kind string) {
	r.DispatchErrors.WithLabelValues(kind).Inc()
}

// RecordBatchCommit records a completed batch commit's size and duration.
func (r *Registry) RecordBatchCommit(commandCount int, seconds float64) {
	r.BatchCommits.Inc()
	r.BatchCommandCount.Observe(float64(commandCount))
	r.BatchCommitSeconds.Observe(seconds)
}

// UpdateTopologyGauges refreshes the site/circuit gauges from current counts.
func (r *Registry) UpdateTopologyGauges(sites, circuits int, byState map[string]int) {
	r.SitesTotal.Set(float64(sites))
	r.CircuitsTotal.Set(float64(circuits))
	for state, count := range byState {
		r.CircuitsByState.WithLabelValues(state).Set(float64(count))
	}
}
