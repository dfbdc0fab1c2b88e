package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/storage"
)

// Searcher runs searches. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, in intent.Intent) (*core.ResultPage, error)
	ParseSearchParams(values url.Values) intent.Intent
}

// ResourceStore serves the read endpoints that bypass search.
type ResourceStore interface {
	GetResource(ctx context.Context, id int64) (*core.Resource, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

type Server struct {
	search   Searcher
	store    ResourceStore
	metrics  *Metrics
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewServer builds the API server. A nil metrics gets a private registry.
func NewServer(searcher Searcher, store ResourceStore, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Server{
		search:  searcher,
		store:   store,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.ForService("api"),
	}
}

// Handler returns the complete HTTP handler: routes, metrics, request ids
// and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(RequestIDMiddleware(s.metrics.Middleware(mux)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// compressed gzips responses for clients that accept it.
func compressed(h http.HandlerFunc) http.Handler {
	return gzhttp.GzipHandler(h)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
