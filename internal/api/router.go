// Package api implements the vowpost REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/starford/vowpost/internal/docservice"
	"github.com/starford/vowpost/internal/editor"
)

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	Service  *docservice.Service
	Sessions *editor.Manager
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// BasePath is the prefix the router is mounted under; redirects use it.
	BasePath string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service, cfg.Sessions, cfg.BasePath)

	r := chi.NewRouter()
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match"},
			ExposedHeaders: []string{"ETag", "Location"},
			MaxAge:         300,
		}))
	}
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.UpdateDocument)
	r.Patch("/documents/*", h.MoveDocument)
	r.Delete("/documents/*", h.DeleteDocument)

	// Navigation.
	r.Get("/outline/*", h.Outline)
	r.Get("/view/*", h.View)
	r.Get("/goto/*", h.Goto)
	r.Post("/preview", h.Preview)

	// Editing sessions.
	if cfg.Sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}", h.EditSession)
			r.Delete("/{id}", h.CloseSession)
			r.Post("/{id}/toc", h.InsertSessionTOC)
			r.Post("/{id}/commit", h.CommitSession)
		})
	}

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
