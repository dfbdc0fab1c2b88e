// Package intent defines the search intent: the query text, facet filters,
// sort and pagination a user has asked for. Intents are plain values; the
// canonical form produced by Normalize is what every other package works
// with.
package intent

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultPageSize is the page size used when none is given.
const DefaultPageSize = 12

type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortName      SortBy = "name"
	SortCreatedAt SortBy = "created_at"
)

// ParseSortBy reports whether s names a known sort field.
func ParseSortBy(s string) (SortBy, bool) {
	switch SortBy(s) {
	case SortRelevance, SortName, SortCreatedAt:
		return SortBy(s), true
	}
	return SortRelevance, false
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder reports whether s names a known sort direction.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch SortOrder(s) {
	case Asc, Desc:
		return SortOrder(s), true
	}
	return Desc, false
}

// Filters holds the facet restrictions of an intent. Category holds
// category display names, never ids.
type Filters struct {
	Category   []string
	Services   []string
	Population []string
	Location   string
}

// IsZero reports whether no facet restricts the search.
func (f Filters) IsZero() bool {
	return len(f.Category) == 0 && len(f.Services) == 0 && len(f.Population) == 0 && f.Location == ""
}

type Intent struct {
	Query     string
	Filters   Filters
	SortBy    SortBy
	SortOrder SortOrder
	Page      int
	PageSize  int
}

// Default returns the intent of a fresh session.
func Default() Intent {
	return Intent{
		SortBy:    SortRelevance,
		SortOrder: Desc,
		Page:      1,
		PageSize:  DefaultPageSize,
	}
}

// Normalize returns the canonical form of in: text is NFC normalized and
// trimmed, list values are split on commas with blanks and duplicates
// removed, unknown sort values fall back to their defaults and page and
// page size are at least 1.
func Normalize(in Intent) Intent {
	out := Intent{
		Query: normalizeText(in.Query),
		Filters: Filters{
			Category:   NormalizeList(in.Filters.Category),
			Services:   NormalizeList(in.Filters.Services),
			Population: NormalizeList(in.Filters.Population),
			Location:   normalizeText(in.Filters.Location),
		},
		Page:     in.Page,
		PageSize: in.PageSize,
	}
	out.SortBy, _ = ParseSortBy(string(in.SortBy))
	out.SortOrder, _ = ParseSortOrder(string(in.SortOrder))
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PageSize < 1 {
		out.PageSize = DefaultPageSize
	}
	return out
}

// NormalizeList returns the ordered set of non-blank values found in
// values. Each element may itself carry several comma separated values.
// The result is nil when nothing remains.
func NormalizeList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = normalizeText(part)
			if part == "" || slices.Contains(out, part) {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Equal reports whether a and b describe the same search. Nil and empty
// lists are equal.
func (in Intent) Equal(other Intent) bool {
	return in.Query == other.Query &&
		in.SortBy == other.SortBy &&
		in.SortOrder == other.SortOrder &&
		in.Page == other.Page &&
		in.PageSize == other.PageSize &&
		in.Filters.Location == other.Filters.Location &&
		slices.Equal(in.Filters.Category, other.Filters.Category) &&
		slices.Equal(in.Filters.Services, other.Filters.Services) &&
		slices.Equal(in.Filters.Population, other.Filters.Population)
}

// Clone returns a deep copy so callers may mutate list filters freely.
func (in Intent) Clone() Intent {
	out := in
	out.Filters.Category = slices.Clone(in.Filters.Category)
	out.Filters.Services = slices.Clone(in.Filters.Services)
	out.Filters.Population = slices.Clone(in.Filters.Population)
	return out
}
