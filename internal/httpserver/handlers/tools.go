package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/translate"
)

// ListTools serves the tool catalog the gateway polls.
func ListTools(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tools": d.Catalog.Tools,
		})
	}
}

type executePayload struct {
	Parameters map[string]interface{} `json:"parameters"`
}

// ExecuteTool runs one catalog tool. Requests are delayed by the
// resource monitor's recommendation when the host is under pressure.
func ExecuteTool(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if d.Catalog.Get(name) == nil {
			writeError(w, http.StatusNotFound, "unknown tool: "+name)
			return
		}

		var payload executePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		if d.Resource != nil && d.Resource.ShouldThrottle() {
			delay := d.Resource.RecommendedDelay()
			d.Logger.Debug("throttling tool execution",
				logger.String("tool", name),
				logger.Duration("delay", delay))
			if err := sleepCtx(r.Context(), delay); err != nil {
				writeError(w, http.StatusServiceUnavailable, "request cancelled")
				return
			}
		}

		result, err := d.Translator.Execute(r.Context(), name, payload.Parameters)
		if err != nil {
			var verr *translate.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
