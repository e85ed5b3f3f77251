package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/coursevault/internal/syncservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// base bounds sync runs started in the background.
func NewRouter(base context.Context, svc *syncservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(base, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/status", h.Status)
	r.Post("/sync", h.TriggerSync)

	r.Get("/courses", h.ListCourses)
	r.Put("/courses", h.SelectCourses)
	r.Get("/courses/available", h.AvailableCourses)

	r.Get("/records", h.ListRecords)
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
