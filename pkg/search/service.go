package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rubiojr/resdir/pkg/codec"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/storage"
)

// ErrStore marks every failure caused by the backing store.
var ErrStore = errors.New("store failure")

// Store is what the service needs from the resource store.
type Store interface {
	CategoryStore
	Find(ctx context.Context, q storage.Query) ([]core.Resource, int, error)
}

// Settings tune a Service and may be swapped at runtime.
type Settings struct {
	// DefaultPageSize applies when a request carries no limit.
	DefaultPageSize int
	// MaxPageSize caps the limit a request may ask for.
	MaxPageSize int
	// CategoryCacheSize bounds cached category lookups. Negative disables
	// the cache, zero means unbounded.
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		DefaultPageSize:   intent.DefaultPageSize,
		MaxPageSize:       100,
		CategoryCacheSize: 256,
		CategoryCacheTTL:  5 * time.Minute,
	}
}

type Service struct {
	store    Store
	settings atomic.Pointer[Settings]
	resolver atomic.Pointer[resolverHolder]
	logger   *log.Logger
}

type resolverHolder struct {
	Resolver
}

func NewService(store Store, settings Settings) *Service {
	s := &Service{
		store:  store,
		logger: log.ForService("search"),
	}
	s.Configure(settings)
	return s
}

// Configure swaps the settings. The category cache is rebuilt only when
// its size or TTL changed.
func (s *Service) Configure(settings Settings) {
	if settings.MaxPageSize < 1 {
		settings.MaxPageSize = DefaultSettings().MaxPageSize
	}
	if settings.DefaultPageSize < 1 {
		settings.DefaultPageSize = intent.DefaultPageSize
	}
	settings.DefaultPageSize = min(settings.DefaultPageSize, settings.MaxPageSize)

	old := s.settings.Swap(&settings)
	if old != nil && s.resolver.Load() != nil &&
		old.CategoryCacheSize == settings.CategoryCacheSize &&
		old.CategoryCacheTTL == settings.CategoryCacheTTL {
		return
	}

	var r Resolver = NewStoreResolver(s.store)
	if settings.CategoryCacheSize >= 0 {
		r = NewCachedResolver(r, settings.CategoryCacheSize, settings.CategoryCacheTTL)
	}
	s.resolver.Store(&resolverHolder{r})
}

func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// Search runs in against the store and returns the requested page. A
// category filter that resolves to no ids yields an empty page without
// querying resources.
func (s *Service) Search(ctx context.Context, in intent.Intent) (*core.ResultPage, error) {
	in = intent.Normalize(in)
	pageSize := min(in.PageSize, s.settings.Load().MaxPageSize)

	q := storage.Query{
		Text:       in.Query,
		Services:   in.Filters.Services,
		Population: in.Filters.Population,
		Location:   in.Filters.Location,
		SortBy:     in.SortBy,
		SortOrder:  in.SortOrder,
		Limit:      pageSize,
		Offset:     core.Offset(in.Page, pageSize),
	}

	if len(in.Filters.Category) > 0 {
		ids, err := s.resolveCategories(ctx, in.Filters.Category)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			s.logger.Debugf("no category matches %v, returning empty page", in.Filters.Category)
			return core.EmptyResultPage(in.Page, pageSize), nil
		}
		q.ByCategory = true
		q.CategoryIDs = ids
	}

	items, total, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: finding resources: %w", ErrStore, err)
	}

	s.logger.Debugf("query %q page %d: %d of %d", in.Query, in.Page, len(items), total)
	return core.NewResultPage(items, total, in.Page, pageSize), nil
}

// resolveCategories is the category stage of the pipeline.
func (s *Service) resolveCategories(ctx context.Context, names []string) ([]int64, error) {
	ids, err := s.resolver.Load().Resolve(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving categories: %w", ErrStore, err)
	}
	return ids, nil
}

// ParseSearchParams converts HTTP query parameters to an intent. Invalid
// values fall back to defaults; a missing limit takes the configured
// default page size.
func (s *Service) ParseSearchParams(values url.Values) intent.Intent {
	in := codec.Decode(values)
	if values.Get(codec.KeyLimit) == "" {
		in.PageSize = s.settings.Load().DefaultPageSize
	}
	return in
}
