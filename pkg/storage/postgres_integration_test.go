//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rubiojr/resdir/pkg/intent"
)

func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("resdir_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate()
	require.NoError(t, err)
	return s
}

func TestPostgresFind(t *testing.T) {
	s := newPostgresStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	_, total := find(t, s, Query{})
	assert.Equal(t, 4, total)

	items, _ := find(t, s, Query{Text: "CLINIC"})
	assert.Equal(t, []string{"Northside Clinic"}, names(items))

	items, _ = find(t, s, Query{Services: []string{"Dental", "Vision"}, SortBy: intent.SortName, SortOrder: intent.Asc})
	assert.Equal(t, []string{"bright Smiles Dental", "Eye Care Center"}, names(items))

	items, _ = find(t, s, Query{Text: "100%"})
	assert.Equal(t, []string{"Eye Care Center"}, names(items))

	ids, err := s.ResolveCategories(ctx, []string{"Healthcare"})
	require.NoError(t, err)
	_, total = find(t, s, Query{Text: "food", ByCategory: true, CategoryIDs: ids})
	assert.Zero(t, total)

	items, _ = find(t, s, Query{SortBy: intent.SortRelevance, SortOrder: intent.Desc})
	require.Len(t, items, 4)
	assert.Equal(t, "Community Food Pantry", items[0].Name)
	assert.Equal(t, []string{"Groceries"}, items[0].ServicesOffered)
	assert.True(t, baseTime.Add(4*time.Hour).Equal(items[0].CreatedAt))
}

func TestPostgresStats(t *testing.T) {
	s := newPostgresStore(t)
	seedDirectory(t, s)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Resources)
	assert.Equal(t, 4, stats.Approved)
	assert.NoError(t, s.Optimize(context.Background()))
}
