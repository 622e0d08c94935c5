package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sgallagher/distrobuildsync/internal/metrics"
)

// metricsMux serves /metrics and a trivial /healthz liveness endpoint.
func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
