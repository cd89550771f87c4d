package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the read-only archive routes mounted.
func NewRouter(st Store) chi.Router {
	h := NewHandler(st)

	r := chi.NewRouter()
	r.Get("/report", h.Report)
	r.Get("/posts", h.Posts)

	return r
}
