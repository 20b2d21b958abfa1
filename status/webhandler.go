// Package status serves the live state of the controller over HTTP.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"lautenbacher.net/intellitraffic/coordinator"
)

// Source is what the handler reports on. *coordinator.Coordinator
// implements it.
type Source interface {
	CurrentStatus() coordinator.Status
}

// StatusHandler serves GET /api/status.
func StatusHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.CurrentStatus()); err != nil {
			slog.Error("Failed to encode status to JSON", "error", err)
			http.Error(w, "Failed to serialize status", http.StatusInternalServerError)
		}
	}
}
