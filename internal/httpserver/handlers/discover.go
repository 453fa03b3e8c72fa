package handlers

import (
	"net/http"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
)

// Discover forces an immediate model discovery cycle outside the poll
// schedule.
func Discover(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := d.Discovery.Force(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "discovery failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"model_count": count,
		})
	}
}
