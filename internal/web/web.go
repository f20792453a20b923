// Package web exposes the serve-mode health endpoint.
package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// NewHealthServer returns an HTTP server answering GET /health, so the
// hosting platform can probe the long-running scheduler process.
func NewHealthServer(addr string, started time.Time) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"service": "dayflow-scheduler",
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
