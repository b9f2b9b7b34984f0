package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/api/{conn}", func(r chi.Router) {
		r.Get("/schema", s.getSchema)
		r.Delete("/schema", s.clearSchema)
		r.Post("/schema/refresh", s.refreshSchema)

		r.Get("/tables", s.listTables)
		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/", s.listRows)
			r.Post("/", s.createRow)
			r.Delete("/", s.deleteRows)

			r.Get("/{id}", s.getRow)
			r.Put("/{id}", s.updateRow)
			r.Patch("/{id}", s.updateRow)
			r.Delete("/{id}", s.deleteRow)

			r.Get("/{id}/{related}", s.listRelated)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Kind: "not_found", Message: "no such route"}})
	})
	return r
}
