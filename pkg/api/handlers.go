package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rubiojr/resdir/pkg/storage"
	"github.com/rubiojr/resdir/pkg/version"
)

const storeFailureMessage = "The resource store is unavailable, try again later"

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	in := s.search.ParseSearchParams(r.URL.Query())

	start := time.Now()
	page, err := s.search.Search(r.Context(), in)
	s.metrics.ObserveSearch(time.Since(start), page, err)
	if err != nil {
		s.logger.WithField("request_id", RequestID(r.Context())).Errorf("search failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Search failed", storeFailureMessage)
		return
	}

	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) HandleResource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Resource id must be a positive integer")
		return
	}

	resource, err := s.store.GetResource(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Resource not found", fmt.Sprintf("Resource %d does not exist", id))
		return
	}
	if err != nil {
		s.logger.Errorf("getting resource %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to get resource", storeFailureMessage)
		return
	}

	s.writeJSON(w, http.StatusOK, resource)
}

func (s *Server) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.Errorf("listing categories: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list categories", storeFailureMessage)
		return
	}

	s.writeJSON(w, http.StatusOK, ListCategoriesResponse{
		Categories: categories,
		Count:      len(categories),
	})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Errorf("getting stats: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", storeFailureMessage)
		return
	}

	response := StatsResponse{
		Resources:  stats.Resources,
		Approved:   stats.Approved,
		Categories: stats.Categories,
	}
	if !stats.Oldest.IsZero() {
		response.Oldest = &stats.Oldest
		response.Newest = &stats.Newest
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
