package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// backendKind is reported by /status ("local" or "remote").
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// clients, if non-nil, feeds the connected-client count in /status.
func NewRouter(sess *session.Session, authEnabled bool, token, backendKind string, sseHandler http.Handler, clients func() int) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}/body", h.SaveBody)
	r.Patch("/documents/{id}", h.UpdateMetadata)
	r.Delete("/documents/{id}", h.DeleteDocument)

	// Hierarchy.
	r.Get("/structure", h.GetStructure)
	r.Post("/structure/move", h.Move)

	// Derived state.
	r.Get("/index", h.GetIndex)
	r.Get("/search", h.Search)

	// Health.
	r.Get("/status", h.Status(backendKind, clients))

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
