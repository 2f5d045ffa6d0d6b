package routes

import (
	"net/http"

	"github.com/promptsentry/promptsentry/internal/api/handlers"
	"github.com/promptsentry/promptsentry/internal/api/middleware"
)

// Router wires the HTTP surface of the gateway
type Router struct {
	mux          *http.ServeMux
	guardHandler *handlers.GuardHandler
}

// NewRouter creates a new router
func NewRouter(guardHandler *handlers.GuardHandler) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		guardHandler: guardHandler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("POST /api/guard", r.guardHandler.Guard)
	r.mux.HandleFunc("GET /health", r.guardHandler.Health)
}

// Handler returns the mux wrapped with the shared middleware.
func (r *Router) Handler() http.Handler {
	return middleware.LoggingMiddleware(r.mux)
}
