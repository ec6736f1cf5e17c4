/*
Package metrics provides Prometheus metrics collection and exposition
for cephadmd.

Metrics are registered at package init against the default Prometheus
registry and exposed via an HTTP handler for scraping.

# Metrics Catalog

Inventory/cache gauges:

cephadmd_hosts_total{status}:
  - Type: Gauge
  - Description: Total managed hosts by status (online/offline)

cephadmd_daemons_total{daemon_type, status}:
  - Type: Gauge
  - Description: Total observed daemons by type and status

Serve-loop metrics:

cephadmd_reconciliation_duration_seconds:
  - Type: Histogram
  - Description: Time taken for one serve-loop iteration

cephadmd_reconciliation_cycles_total:
  - Type: Counter
  - Description: Total serve-loop iterations completed

cephadmd_reconciliation_stage_duration_seconds{stage}:
  - Type: Histogram
  - Description: Time taken by one serve-loop stage (host-refresh, apply,
    daemon-check, removal, upgrade)

Scheduler metrics:

cephadmd_scheduler_decision_duration_seconds:
  - Type: Histogram
  - Description: Time taken to compute a HostAssignment decision

cephadmd_daemons_deployed_total{service_type}:
  - Type: Counter
  - Description: Total daemons deployed by service type

cephadmd_daemons_removed_total{service_type}:
  - Type: Counter
  - Description: Total daemons removed by service type

Executor metrics:

cephadmd_executor_call_duration_seconds{command}:
  - Type: Histogram
  - Description: Time taken by an agent call over SSH

cephadmd_executor_call_failures_total{hostname, kind}:
  - Type: Counter
  - Description: Total failed agent calls by host and error kind

OSD removal metrics:

cephadmd_osd_removal_queue_length:
  - Type: Gauge
  - Description: Number of OSDs currently in the removal queue

cephadmd_osd_removal_stage_duration_seconds{stage}:
  - Type: Histogram
  - Description: Time spent processing one removal-queue state transition

Upgrade metrics:

cephadmd_upgrade_step_duration_seconds{daemon_type}:
  - Type: Histogram
  - Description: Time taken to redeploy one daemon during a rolling upgrade

Health publisher metric:

cephadmd_health_checks_active:
  - Type: Gauge
  - Description: Number of currently published health checks

# Usage

	import "github.com/cuemby/cephadmd/pkg/metrics"

	metrics.HostsTotal.WithLabelValues("online").Set(5)
	metrics.ReconciliationCyclesTotal.Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ReconciliationDuration)

	timer = metrics.NewTimer()
	// ... run one serve-loop stage ...
	timer.ObserveDurationVec(metrics.ReconciliationStageDuration, "host-refresh")

	http.Handle("/metrics", metrics.Handler())

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
