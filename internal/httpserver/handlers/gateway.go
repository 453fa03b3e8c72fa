package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/httpserver/deps"
)

// GatewayHealth reports gateway health and the state of every
// registered downstream service.
func GatewayHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := d.TimeNow()
		entries := d.Services.All()

		status := "healthy"
		if len(entries) == 0 {
			status = "degraded"
		}

		services := make(map[string]interface{}, len(entries))
		for _, entry := range entries {
			services[entry.Name] = map[string]interface{}{
				"url":       entry.URL,
				"healthy":   entry.Healthy,
				"tools":     len(entry.Tools),
				"last_seen": entry.LastSeen.Format(time.RFC3339),
			}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         status,
			"service":        "gateway",
			"version":        d.Version,
			"uptime_seconds": now.Sub(d.StartTime).Seconds(),
			"services":       services,
		})
	}
}

// GatewayServices lists the registered downstream services with their
// full tool catalogs.
func GatewayServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"services": d.Services.All(),
		})
	}
}

type gatewayCallPayload struct {
	Service    string                 `json:"service,omitempty"`
	Parameters map[string]interface{} `json:"parameters"`
}

// GatewayExecute forwards a single tool call to the service that
// exposes it.
func GatewayExecute(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload gatewayCallPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		result := d.Aggregator.Aggregate(r.Context(), []domain.ToolCall{{
			Service:    payload.Service,
			Tool:       chi.URLParam(r, "name"),
			Parameters: payload.Parameters,
		}})

		writeJSON(w, statusCodeFor(result.Status), result)
	}
}

type aggregatePayload struct {
	Calls []domain.ToolCall `json:"calls"`
}

// GatewayAggregate fans a batch of tool calls out and returns the
// consolidated result.
func GatewayAggregate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload aggregatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		result := d.Aggregator.Aggregate(r.Context(), payload.Calls)
		writeJSON(w, statusCodeFor(result.Status), result)
	}
}

func statusCodeFor(status string) int {
	switch status {
	case domain.StatusSuccess, domain.StatusNoCalls:
		return http.StatusOK
	case domain.StatusServiceNotFound:
		return http.StatusNotFound
	case domain.StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
