package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zerverless/versionindex/internal/config"
	"github.com/zerverless/versionindex/internal/registry"
)

// NewRouter exposes the registries of manager. Uploads honor the X-Revision
// header only when the manager's revision source is a revision.Override.
func NewRouter(cfg *config.Config, manager *registry.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := NewHandlers(cfg, manager)

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/info", h.Info)

	// Registry API
	r.Route("/api/apps/{appId}", func(r chi.Router) {
		r.Get("/versions", h.ListVersions)
		r.Post("/versions", h.Upload)
		r.Get("/current", h.GetCurrent)
		r.Put("/current", h.SetCurrent)
	})

	// Serve the active payload
	r.Get("/apps/{appId}", h.Serve)

	return r
}
