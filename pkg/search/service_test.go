package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/resdir/pkg/codec"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/storage"
)

// fakeStore records the queries it receives.
type fakeStore struct {
	resolveCalls int
	resolveErr   error
	ids          map[string]int64

	findCalls int
	findErr   error
	lastQuery storage.Query
	items     []core.Resource
	total     int
}

func (f *fakeStore) ResolveCategories(_ context.Context, names []string) ([]int64, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	ids := []int64{}
	for _, n := range names {
		if id, ok := f.ids[n]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) Find(_ context.Context, q storage.Query) ([]core.Resource, int, error) {
	f.findCalls++
	f.lastQuery = q
	if f.findErr != nil {
		return nil, 0, f.findErr
	}
	return f.items, f.total, nil
}

func TestSearchUnknownCategoryShortCircuits(t *testing.T) {
	store := &fakeStore{ids: map[string]int64{"Food": 1}}
	svc := NewService(store, DefaultSettings())

	in := intent.Default()
	in.Filters.Category = []string{"Nonexistent"}

	page, err := svc.Search(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, store.findCalls, "resources must not be queried")
}

func TestSearchPassesResolvedIDs(t *testing.T) {
	store := &fakeStore{ids: map[string]int64{"Food": 1, "Housing": 2}}
	svc := NewService(store, DefaultSettings())

	in := intent.Default()
	in.Query = "pantry"
	in.Filters.Category = []string{"Housing", "Missing", "Food"}
	in.Filters.Services = []string{"Meals"}
	in.Filters.Location = "Main"
	in.SortBy = intent.SortName
	in.Page = 3
	in.PageSize = 10

	_, err := svc.Search(context.Background(), in)
	require.NoError(t, err)

	q := store.lastQuery
	assert.True(t, q.ByCategory)
	assert.ElementsMatch(t, []int64{1, 2}, q.CategoryIDs)
	assert.Equal(t, "pantry", q.Text)
	assert.Equal(t, []string{"Meals"}, q.Services)
	assert.Equal(t, "Main", q.Location)
	assert.Equal(t, intent.SortName, q.SortBy)
	assert.Equal(t, intent.Desc, q.SortOrder)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
}

func TestSearchWithoutCategorySkipsResolver(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, DefaultSettings())

	_, err := svc.Search(context.Background(), intent.Default())
	require.NoError(t, err)
	assert.Zero(t, store.resolveCalls)
	assert.False(t, store.lastQuery.ByCategory)
}

func TestSearchStoreFailures(t *testing.T) {
	boom := errors.New("disk on fire")

	t.Run("category lookup", func(t *testing.T) {
		store := &fakeStore{resolveErr: boom}
		svc := NewService(store, DefaultSettings())

		in := intent.Default()
		in.Filters.Category = []string{"Food"}

		page, err := svc.Search(context.Background(), in)
		assert.Nil(t, page)
		assert.ErrorIs(t, err, ErrStore)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, store.findCalls)
	})

	t.Run("main query", func(t *testing.T) {
		store := &fakeStore{findErr: boom}
		svc := NewService(store, DefaultSettings())

		page, err := svc.Search(context.Background(), intent.Default())
		assert.Nil(t, page)
		assert.ErrorIs(t, err, ErrStore)
		assert.ErrorIs(t, err, boom)
	})
}

func TestSearchClampsPageSize(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, Settings{DefaultPageSize: 12, MaxPageSize: 50, CategoryCacheSize: -1})

	in := intent.Default()
	in.PageSize = 500
	in.Page = 2

	page, err := svc.Search(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastQuery.Limit)
	assert.Equal(t, 50, store.lastQuery.Offset)
	assert.Equal(t, 50, page.PageSize)
}

func TestParseSearchParams(t *testing.T) {
	svc := NewService(&fakeStore{}, Settings{DefaultPageSize: 20, MaxPageSize: 100})

	in := svc.ParseSearchParams(url.Values{"q": {"clinic"}, "page": {"x"}})
	assert.Equal(t, "clinic", in.Query)
	assert.Equal(t, 1, in.Page)
	assert.Equal(t, 20, in.PageSize)

	in = svc.ParseSearchParams(url.Values{"limit": {"5"}})
	assert.Equal(t, 5, in.PageSize)
}

func TestConfigureKeepsCacheWhenUnchanged(t *testing.T) {
	svc := NewService(&fakeStore{}, DefaultSettings())
	before := svc.resolver.Load()

	s := DefaultSettings()
	s.MaxPageSize = 30
	svc.Configure(s)
	assert.Same(t, before, svc.resolver.Load())
	assert.Equal(t, 30, svc.Settings().MaxPageSize)

	s.CategoryCacheTTL = time.Minute
	svc.Configure(s)
	assert.NotSame(t, before, svc.resolver.Load())
}

func TestConfigureDisablesCache(t *testing.T) {
	svc := NewService(&fakeStore{}, Settings{MaxPageSize: 10, CategoryCacheSize: -1})
	_, cached := svc.resolver.Load().Resolver.(*CachedResolver)
	assert.False(t, cached)
	assert.Equal(t, 10, svc.Settings().DefaultPageSize)
}

// Scenarios against a real sqlite store.

func newSQLiteService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate()
	require.NoError(t, err)
	return NewService(store, DefaultSettings()), store
}

func importResources(t *testing.T, store *storage.Store, batch storage.ImportBatch) {
	t.Helper()
	_, err := store.Import(context.Background(), batch)
	require.NoError(t, err)
}

func TestScenarioHealthcareWithoutFood(t *testing.T) {
	svc, store := newSQLiteService(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := storage.ImportBatch{Categories: []core.Category{{Name: "Healthcare"}, {Name: "Food"}}}
	for i, name := range []string{"City Clinic", "Dental Care", "Vision Center"} {
		batch.Resources = append(batch.Resources, storage.ImportResource{
			Resource: core.Resource{Name: name, Description: "medical services", Approved: true, CreatedAt: base.Add(time.Duration(i) * time.Hour)},
			Category: "Healthcare",
		})
	}
	batch.Resources = append(batch.Resources, storage.ImportResource{
		Resource: core.Resource{Name: "Food Bank", Approved: true, CreatedAt: base},
		Category: "Food",
	})
	importResources(t, store, batch)

	page, err := svc.Search(context.Background(), codec.DecodeString("q=food&category=Healthcare"))
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Items)

	page, err = svc.Search(context.Background(), codec.DecodeString("category=Healthcare"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	page, err = svc.Search(context.Background(), codec.DecodeString("category=Nope"))
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalCount)
}

func TestScenarioRelevanceWithoutTextIsNewestFirst(t *testing.T) {
	svc, store := newSQLiteService(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := storage.ImportBatch{}
	for i, name := range []string{"Alpha", "Charlie", "Bravo"} {
		batch.Resources = append(batch.Resources, storage.ImportResource{
			Resource: core.Resource{Name: name, Approved: true, CreatedAt: base.Add(time.Duration(i) * time.Hour)},
		})
	}
	importResources(t, store, batch)

	page, err := svc.Search(context.Background(), intent.Default())
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "Bravo", page.Items[0].Name)
	assert.Equal(t, "Charlie", page.Items[1].Name)
	assert.Equal(t, "Alpha", page.Items[2].Name)
}

func TestScenarioLastPartialPage(t *testing.T) {
	svc, store := newSQLiteService(t)

	batch := storage.ImportBatch{}
	for i := 0; i < 25; i++ {
		batch.Resources = append(batch.Resources, storage.ImportResource{
			Resource: core.Resource{Name: fmt.Sprintf("Shelter %02d", i), Approved: true},
		})
	}
	importResources(t, store, batch)

	in := intent.Default()
	in.Page = 3

	page, err := svc.Search(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)

	in.Page = 4
	page, err = svc.Search(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 25, page.TotalCount)

	for p := 1; p <= 3; p++ {
		in.Page = p
		page, err := svc.Search(context.Background(), in)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), in.PageSize)
	}
}

func TestScenarioHugePageIsPastTheEnd(t *testing.T) {
	svc, store := newSQLiteService(t)

	batch := storage.ImportBatch{}
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		batch.Resources = append(batch.Resources, storage.ImportResource{
			Resource: core.Resource{Name: name, Approved: true},
		})
	}
	importResources(t, store, batch)

	for _, raw := range []string{"page=768614336404564652", fmt.Sprintf("page=%d&limit=100", math.MaxInt)} {
		t.Run(raw, func(t *testing.T) {
			page, err := svc.Search(context.Background(), codec.DecodeString(raw))
			require.NoError(t, err)
			assert.Equal(t, 3, page.TotalCount)
			assert.Equal(t, 1, page.TotalPages)
			assert.Empty(t, page.Items)
			assert.NotNil(t, page.Items)
		})
	}
}

func TestScenarioTextMatchFoldsAccentedCase(t *testing.T) {
	svc, store := newSQLiteService(t)

	importResources(t, store, storage.ImportBatch{Resources: []storage.ImportResource{
		{Resource: core.Resource{Name: "CLÍNICA ÁGUILA", Address: "Plaza Mayor 1, ÁVILA", Approved: true}},
		{Resource: core.Resource{Name: "Clinic West", Approved: true}},
	}})

	page, err := svc.Search(context.Background(), codec.DecodeString("q=cl%C3%ADnica"))
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "CLÍNICA ÁGUILA", page.Items[0].Name)

	page, err = svc.Search(context.Background(), codec.DecodeString("location=%C3%A1vila"))
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}
