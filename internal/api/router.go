package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notelinker/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Regeneration against the vocabulary dataset.
	r.Get("/update/*", h.PreviewUpdate)
	r.Post("/update/*", h.ApplyUpdate)
	r.Post("/refresh", h.Refresh)

	// Rendered note page.
	r.Get("/preview/*", h.Preview)

	// Stateless engine endpoints over posted text.
	r.Post("/links", h.Links)
	r.Post("/check", h.Check)

	// Vocabulary dataset.
	r.Post("/vocab", h.ImportVocab)
	r.Get("/vocab/{slug}", h.GetVocab)
	r.Get("/vocab/{slug}/line", h.CopyLine)
	r.Get("/mentions/{slug}", h.Mentions)

	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
