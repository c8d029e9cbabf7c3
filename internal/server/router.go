// Package server exposes health and metrics endpoints for long-running triggers.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/rawproc/internal/processor"
)

// StatsSource reports processor counters.
type StatsSource interface {
	Health() processor.Stats
}

// ReadyFunc reports whether upstream dependencies are reachable.
type ReadyFunc func() bool

// NewRouter constructs a ServeMux with health and metrics routes registered.
func NewRouter(stats StatsSource, ready ReadyFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"stats":  stats.Health(),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return RequestID(mux)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
