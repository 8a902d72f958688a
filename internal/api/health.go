package api

import (
	"net/http"
)

// HealthHandler reports static liveness. The broker connection was
// verified at startup; this does not deep-check broker or store health.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
