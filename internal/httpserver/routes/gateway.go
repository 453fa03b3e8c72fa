package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/httpserver/handlers"
)

func init() { Register(registerGateway) }

func registerGateway(r chi.Router, d deps.Deps) {
	if d.Aggregator == nil {
		return
	}
	r.Get("/health", handlers.GatewayHealth(d))
	r.Get("/services", handlers.GatewayServices(d))
	r.Post("/tools/{name}", handlers.GatewayExecute(d))
	r.Post("/aggregate", handlers.GatewayAggregate(d))
}
