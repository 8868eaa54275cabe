package web

import (
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/healthz", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/store", s.handleStore)
		r.Post("/store/reload", s.handleStoreReload)
		r.Post("/recognize", s.handleRecognize)
		r.Get("/sightings", s.handleSightings)
	})
}
