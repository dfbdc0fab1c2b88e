// Package codec converts search intents to and from URL query strings.
//
// Encoding omits every key whose value equals the default, so the default
// intent encodes to the empty string. Decoding never fails: anything it
// cannot interpret falls back to the default for that key.
package codec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rubiojr/resdir/pkg/intent"
)

// Query string keys.
const (
	KeyQuery      = "q"
	KeyCategory   = "category"
	KeyServices   = "services"
	KeyPopulation = "population"
	KeyLocation   = "location"
	KeySortBy     = "sortBy"
	KeySortOrder  = "sortOrder"
	KeyPage       = "page"
	KeyLimit      = "limit"
)

// Encode returns the query values for in. in is normalized first.
func Encode(in intent.Intent) url.Values {
	in = intent.Normalize(in)
	v := url.Values{}

	if in.Query != "" {
		v.Set(KeyQuery, in.Query)
	}
	setList(v, KeyCategory, in.Filters.Category)
	setList(v, KeyServices, in.Filters.Services)
	setList(v, KeyPopulation, in.Filters.Population)
	if in.Filters.Location != "" {
		v.Set(KeyLocation, in.Filters.Location)
	}
	if in.SortBy != intent.SortRelevance {
		v.Set(KeySortBy, string(in.SortBy))
	}
	if in.SortOrder != intent.Desc {
		v.Set(KeySortOrder, string(in.SortOrder))
	}
	if in.Page != 1 {
		v.Set(KeyPage, strconv.Itoa(in.Page))
	}
	if in.PageSize != intent.DefaultPageSize {
		v.Set(KeyLimit, strconv.Itoa(in.PageSize))
	}
	return v
}

func setList(v url.Values, key string, values []string) {
	if joined := strings.Join(values, ","); joined != "" {
		v.Set(key, joined)
	}
}

// EncodeString returns the canonical query string for in, without a
// leading "?". Keys are sorted.
func EncodeString(in intent.Intent) string {
	return Encode(in).Encode()
}

// Decode builds a normalized intent from query values. Missing or invalid
// values take their defaults:
//
//	page       non-numeric, < 1 or overflowing  -> 1
//	limit      non-numeric, < 1 or overflowing  -> 12
//	sortBy     not name, created_at, relevance  -> relevance
//	sortOrder  not asc, desc                    -> desc
//
// List keys may repeat and may carry comma separated values.
func Decode(v url.Values) intent.Intent {
	in := intent.Default()
	if v == nil {
		return in
	}

	in.Query = v.Get(KeyQuery)
	in.Filters.Category = v[KeyCategory]
	in.Filters.Services = v[KeyServices]
	in.Filters.Population = v[KeyPopulation]
	in.Filters.Location = v.Get(KeyLocation)
	in.SortBy, _ = intent.ParseSortBy(v.Get(KeySortBy))
	in.SortOrder, _ = intent.ParseSortOrder(v.Get(KeySortOrder))
	in.Page = positiveInt(v.Get(KeyPage), 1)
	in.PageSize = positiveInt(v.Get(KeyLimit), intent.DefaultPageSize)

	return intent.Normalize(in)
}

// DecodeString parses a raw query string, with or without a leading "?".
// Pairs with bad escapes are skipped; the rest still apply.
func DecodeString(raw string) intent.Intent {
	// ParseQuery keeps every pair it could decode alongside the error.
	v, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	return Decode(v)
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
