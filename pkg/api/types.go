package api

import (
	"time"

	"github.com/rubiojr/resdir/pkg/core"
)

// SearchResponse is the body of a successful search:
// {resources, totalCount, page, limit, totalPages}.
type SearchResponse = core.ResultPage

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ListCategoriesResponse struct {
	Categories []core.Category `json:"categories"`
	Count      int             `json:"count"`
}

type StatsResponse struct {
	Resources  int        `json:"resources"`
	Approved   int        `json:"approved"`
	Categories int        `json:"categories"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Live endpoint messages.
const (
	LiveTypeInit   = "init"
	LiveTypeResult = "result"
	LiveTypeError  = "error"
)

// LiveRequest asks for one search. Query is an encoded query string as
// produced by codec.EncodeString.
type LiveRequest struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// LiveResponse is sent once with Type "init" on connect and then once per
// request, echoing its ID.
type LiveResponse struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Result  *SearchResponse `json:"result,omitempty"`
	Error   *ErrorResponse  `json:"error,omitempty"`
	Version string          `json:"version,omitempty"`
}
