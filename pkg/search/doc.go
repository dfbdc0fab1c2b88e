// Package search executes resource searches for the resdir directory.
//
// # Overview
//
// A search takes a normalized intent.Intent and returns one page of approved
// resources together with the exact number of matches. It is the single
// entry point used by the HTTP API, the WebSocket live endpoint and the
// `resdir search` command.
//
// # Pipeline
//
// Every search runs the same fixed stages:
//
//  1. approved resources only (always applied by the store)
//  2. free text: case-insensitive substring over name, description or address
//  3. categories: display names are resolved to ids by a Resolver; when no
//     name resolves the search returns an empty page without touching the
//     resources table
//  4. services: overlap between the requested and offered values
//  5. population: overlap between the requested and served values
//  6. location: case-insensitive substring of the address
//  7. sort: name, created_at or relevance (see below)
//  8. pagination: offset = (page-1)*pageSize, count and page read together
//
// Relevance has no ranking signal. With query text it orders by name,
// otherwise by creation time. The default desc order means "best first":
// A to Z by name, newest first by time.
//
// # Errors
//
// Any store failure, in the category lookup or in the main query, aborts the
// search with an error wrapping ErrStore. Partial results are never returned.
//
// # Usage
//
//	svc := search.NewService(store, search.DefaultSettings())
//	page, err := svc.Search(ctx, codec.DecodeString("q=clinic&category=Healthcare"))
//	if errors.Is(err, search.ErrStore) {
//		// uniform failure response
//	}
//
// # Caching
//
// Category name lookups may be cached in an expiring LRU (see Settings).
// Only lookups that resolve at least one id are cached, so categories added
// later become visible without waiting for the TTL.
package search
