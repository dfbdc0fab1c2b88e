package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/resources/search", compressed(s.HandleSearch))
	mux.HandleFunc("GET /api/resources/live", s.HandleLive)
	mux.Handle("GET /api/resources/{id}", compressed(s.HandleResource))
	mux.Handle("GET /api/categories", compressed(s.HandleCategories))
	mux.Handle("GET /api/stats", compressed(s.HandleStats))
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
}
