package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/archivist/internal/archiveservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *archiveservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Ledger.
	r.Get("/ledger", h.RecentEntries)
	r.Get("/ledger/*", h.LookupEntry)

	// Organizer.
	r.Get("/stats", h.Stats)
	r.Post("/organize", h.Organize)
	r.Get("/preview", h.Preview)

	// Drives.
	r.Get("/drives/compare", h.CompareDrives)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
