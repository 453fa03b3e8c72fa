package handlers

import (
	"net/http"
	"time"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
)

// Health reports the bridge's aggregated health. The endpoint always
// answers 200 so orchestration can read the degraded state instead of
// seeing a dead service.
func Health(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := d.TimeNow()
		status := "healthy"

		upstreamStatus := d.Upstream.Status()
		dependencies := map[string]interface{}{
			"upstream": map[string]interface{}{
				"healthy":                    upstreamStatus.Healthy,
				"breaker_state":              upstreamStatus.BreakerState,
				"consecutive_failures":       upstreamStatus.ConsecutiveFailures,
				"seconds_since_last_success": upstreamStatus.SecondsSinceSuccess,
				"url":                        upstreamStatus.BaseURL,
			},
		}
		if !upstreamStatus.Healthy {
			status = "degraded"
		}

		components := map[string]interface{}{
			"model_discovery": map[string]interface{}{
				"status":      discoveryStatus(d),
				"model_count": d.Models.Count(),
			},
			"resource_monitor": map[string]interface{}{
				"throttle_level": d.Resource.ThrottleState().Level,
			},
		}
		if !d.Discovery.HasModels() {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         status,
			"service":        "bridge",
			"version":        d.Version,
			"uptime_seconds": now.Sub(d.StartTime).Seconds(),
			"timestamp":      now.Format(time.RFC3339),
			"dependencies":   dependencies,
			"components":     components,
		})
	}
}

func discoveryStatus(d deps.Deps) string {
	if d.Discovery.HasModels() {
		return "healthy"
	}
	return "no_models"
}
