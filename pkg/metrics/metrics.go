package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory/cache gauges
	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cephadmd_hosts_total",
			Help: "Total number of managed hosts by status",
		},
		[]string{"status"},
	)

	DaemonsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cephadmd_daemons_total",
			Help: "Total number of observed daemons by type and status",
		},
		[]string{"daemon_type", "status"},
	)

	// Serve-loop metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cephadmd_reconciliation_duration_seconds",
			Help:    "Time taken for one serve-loop iteration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cephadmd_reconciliation_cycles_total",
			Help: "Total number of serve-loop iterations completed",
		},
	)

	ReconciliationStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cephadmd_reconciliation_stage_duration_seconds",
			Help:    "Time taken by one serve-loop stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Scheduler metrics
	SchedulerDecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cephadmd_scheduler_decision_duration_seconds",
			Help:    "Time taken to compute a HostAssignment decision in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DaemonsDeployedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephadmd_daemons_deployed_total",
			Help: "Total number of daemons deployed by service type",
		},
		[]string{"service_type"},
	)

	DaemonsRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephadmd_daemons_removed_total",
			Help: "Total number of daemons removed by service type",
		},
		[]string{"service_type"},
	)

	// Executor metrics
	ExecutorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cephadmd_executor_call_duration_seconds",
			Help:    "Time taken by an agent call over the executor in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	ExecutorCallFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephadmd_executor_call_failures_total",
			Help: "Total number of failed agent calls by host and error kind",
		},
		[]string{"hostname", "kind"},
	)

	// OSD removal metrics
	OSDRemovalQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cephadmd_osd_removal_queue_length",
			Help: "Number of OSDs currently in the removal queue",
		},
	)

	OSDRemovalStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cephadmd_osd_removal_stage_duration_seconds",
			Help:    "Time spent processing one removal-queue state transition in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Upgrade metrics
	UpgradeStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cephadmd_upgrade_step_duration_seconds",
			Help:    "Time taken to redeploy one daemon during a rolling upgrade in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"daemon_type"},
	)

	// Health publisher metric
	HealthChecksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cephadmd_health_checks_active",
			Help: "Number of currently published health checks",
		},
	)
)

func init() {
	prometheus.MustRegister(HostsTotal)
	prometheus.MustRegister(DaemonsTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationStageDuration)
	prometheus.MustRegister(SchedulerDecisionDuration)
	prometheus.MustRegister(DaemonsDeployedTotal)
	prometheus.MustRegister(DaemonsRemovedTotal)
	prometheus.MustRegister(ExecutorCallDuration)
	prometheus.MustRegister(ExecutorCallFailuresTotal)
	prometheus.MustRegister(OSDRemovalQueueLength)
	prometheus.MustRegister(OSDRemovalStageDuration)
	prometheus.MustRegister(UpgradeStepDuration)
	prometheus.MustRegister(HealthChecksActive)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
