// Package metrics exposes Prometheus counters and gauges for the daemon's
// pipeline stages, served over HTTP for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge the daemon updates as it processes
// events, config reloads, and rebuild batches.
type Metrics struct {
	BatchesFlushed       prometheus.Counter
	BuildsTagged         prometheus.Counter
	BuildsSubmitted      prometheus.Counter
	WaitTimeouts         prometheus.Counter
	ConfigReloadFailures prometheus.Counter
	ConfigReloads        prometheus.Counter
	EventsIgnored        prometheus.Counter
	EventsEnqueued       prometheus.Counter
	PendingEvents        prometheus.Gauge
}

// New registers and returns a Metrics bundle against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_batches_flushed_total",
			Help: "Number of coalesced rebuild batches flushed to the orchestrator.",
		}),
		BuildsTagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_builds_tagged_total",
			Help: "Number of builds submitted via tagBuild multicall.",
		}),
		BuildsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_builds_submitted_total",
			Help: "Number of downstream builds submitted via build multicall.",
		}),
		WaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_wait_repo_timeouts_total",
			Help: "Number of wait_repo calls that resolved via timeout rather than fulfilment.",
		}),
		ConfigReloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_config_reload_failures_total",
			Help: "Number of config reload ticks that failed and left the prior configuration in place.",
		}),
		ConfigReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_config_reloads_total",
			Help: "Number of successful configuration swaps.",
		}),
		EventsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_events_ignored_total",
			Help: "Number of bus events dropped by the classifier.",
		}),
		EventsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distrobuildsync_events_enqueued_total",
			Help: "Number of RebuildData records admitted to the coalescer.",
		}),
		PendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "distrobuildsync_pending_events",
			Help: "Number of RebuildData records currently queued awaiting flush.",
		}),
	}

	reg.MustRegister(
		m.BatchesFlushed, m.BuildsTagged, m.BuildsSubmitted, m.WaitTimeouts,
		m.ConfigReloadFailures, m.ConfigReloads, m.EventsIgnored, m.EventsEnqueued,
		m.PendingEvents,
	)
	return m
}

// Handler returns the HTTP handler to serve at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
