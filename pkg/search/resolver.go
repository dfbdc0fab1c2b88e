package search

import (
	"context"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Resolver maps category display names to store ids. Unknown names are
// dropped; an empty result is valid and means nothing can match.
type Resolver interface {
	Resolve(ctx context.Context, names []string) ([]int64, error)
}

// CategoryStore is the store side of category resolution.
type CategoryStore interface {
	ResolveCategories(ctx context.Context, names []string) ([]int64, error)
}

// StoreResolver resolves names with one lookup per call.
type StoreResolver struct {
	store CategoryStore
}

func NewStoreResolver(store CategoryStore) *StoreResolver {
	return &StoreResolver{store: store}
}

func (r *StoreResolver) Resolve(ctx context.Context, names []string) ([]int64, error) {
	return r.store.ResolveCategories(ctx, names)
}

// CachedResolver remembers successful lookups for a limited time.
type CachedResolver struct {
	next  Resolver
	cache *lru.LRU[string, []int64]
}

// NewCachedResolver wraps next with an expiring LRU holding up to size
// lookups for ttl each.
func NewCachedResolver(next Resolver, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: lru.NewLRU[string, []int64](size, nil, ttl),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, names []string) ([]int64, error) {
	key := cacheKey(names)
	if ids, ok := r.cache.Get(key); ok {
		return slices.Clone(ids), nil
	}

	ids, err := r.next.Resolve(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		r.cache.Add(key, slices.Clone(ids))
	}
	return ids, nil
}

// Purge drops every cached lookup.
func (r *CachedResolver) Purge() {
	r.cache.Purge()
}

// Len returns the number of cached lookups.
func (r *CachedResolver) Len() int {
	return r.cache.Len()
}

// cacheKey is independent of name order.
func cacheKey(names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}
