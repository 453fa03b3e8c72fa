package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/httpserver/handlers"
)

func init() { Register(registerBridge) }

func registerBridge(r chi.Router, d deps.Deps) {
	if d.Translator == nil {
		return
	}
	r.Get("/health", handlers.Health(d))
	r.Get("/status", handlers.Status(d))
	r.Get("/tools", handlers.ListTools(d))
	r.Post("/mcp/tools/{name}", handlers.ExecuteTool(d))
	r.Post("/discover", handlers.Discover(d))
}
