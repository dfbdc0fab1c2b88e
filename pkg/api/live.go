package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/resdir/pkg/version"
)

const (
	liveReadLimit    = 64 << 10
	liveWriteTimeout = 10 * time.Second
)

// HandleLive upgrades to a WebSocket and answers LiveRequests in order.
// Each request runs the same search as GET /api/resources/search.
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warnf("live upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.metrics.liveConnections.Inc()
	defer s.metrics.liveConnections.Dec()

	conn.SetReadLimit(liveReadLimit)
	logger := s.logger.WithField("request_id", RequestID(r.Context()))

	// The connection inherits the HTTP server's read deadline.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Warnf("clearing live read deadline: %v", err)
		return
	}

	if err := s.writeLive(conn, LiveResponse{Type: LiveTypeInit, Version: version.APIVersion()}); err != nil {
		logger.Warnf("live init write failed: %v", err)
		return
	}

	for {
		var req LiveRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				logger.Debugf("live read ended: %v", err)
			}
			return
		}

		resp := s.liveSearch(r, req)
		if err := s.writeLive(conn, resp); err != nil {
			logger.Warnf("live write failed: %v", err)
			return
		}
	}
}

func (s *Server) liveSearch(r *http.Request, req LiveRequest) LiveResponse {
	// Like the codec, pairs with bad escapes are skipped.
	values, _ := url.ParseQuery(strings.TrimPrefix(req.Query, "?"))
	in := s.search.ParseSearchParams(values)

	start := time.Now()
	page, err := s.search.Search(r.Context(), in)
	s.metrics.ObserveSearch(time.Since(start), page, err)
	if err != nil {
		s.logger.Errorf("live search %s failed: %v", req.ID, err)
		return LiveResponse{
			Type:  LiveTypeError,
			ID:    req.ID,
			Error: &ErrorResponse{Error: "Search failed", Message: storeFailureMessage},
		}
	}
	return LiveResponse{Type: LiveTypeResult, ID: req.ID, Result: page}
}

func (s *Server) writeLive(conn *websocket.Conn, resp LiveResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(resp)
}
