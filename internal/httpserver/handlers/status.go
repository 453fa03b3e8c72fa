package handlers

import (
	"net/http"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
)

// Status exposes the detailed state of every bridge subsystem.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"service":        "bridge",
			"version":        d.Version,
			"uptime_seconds": d.TimeNow().Sub(d.StartTime).Seconds(),
			"upstream":       d.Upstream.Status(),
			"recovery":       d.Recovery.Status(),
			"discovery": map[string]interface{}{
				"model_count":          d.Models.Count(),
				"last_poll":            d.Models.LastPoll(),
				"consecutive_failures": d.Discovery.ConsecutiveFailures(),
			},
			"resource": map[string]interface{}{
				"snapshot": d.Resource.Snapshot(),
				"throttle": d.Resource.ThrottleState(),
			},
			"maintenance": d.Maintenance.Status(),
		})
	}
}
