package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/resdir/pkg/api"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/search"
	"github.com/rubiojr/resdir/pkg/storage"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate()
	require.NoError(t, err)

	_, err = store.Import(context.Background(), storage.ImportBatch{
		Categories: []core.Category{{Name: "Legal"}},
		Resources: []storage.ImportResource{
			{Resource: core.Resource{Name: "Tenant Rights Office", Approved: true}, Category: "Legal"},
			{Resource: core.Resource{Name: "Legal Aid Society", Approved: true}, Category: "Legal"},
		},
	})
	require.NoError(t, err)

	srv := api.NewServer(search.NewService(store, search.DefaultSettings()), store, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPFetcher(t *testing.T) {
	ts := newServer(t)
	f := NewHTTPFetcher(ts.URL+"/", 5*time.Second)

	page, err := f.Fetch(context.Background(), "q=tenant")
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "Tenant Rights Office", page.Items[0].Name)

	page, err = f.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)

	categories, err := f.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Legal", categories[0].Name)
}

func TestHTTPFetcherServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Search failed","message":"unavailable"}`))
	}))
	defer ts.Close()

	_, err := NewHTTPFetcher(ts.URL, 0).Fetch(context.Background(), "q=x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Search failed", apiErr.Code)
}

func TestHTTPFetcherContextCanceled(t *testing.T) {
	ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPFetcher(ts.URL, 0).Fetch(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLiveFetcher(t *testing.T) {
	ts := newServer(t)
	f, err := NewLiveFetcher(ts.URL)
	require.NoError(t, err)
	defer f.Close()

	var wg sync.WaitGroup
	results := make([]*core.ResultPage, 3)
	errs := make([]error, 3)
	queries := []string{"q=tenant", "q=legal", "category=Nope"}
	for i, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.Fetch(context.Background(), q)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, results[0].TotalCount)
	assert.Equal(t, 1, results[1].TotalCount)
	assert.Equal(t, "Legal Aid Society", results[1].Items[0].Name)
	assert.Equal(t, 0, results[2].TotalCount)
}

func TestLiveFetcherClosed(t *testing.T) {
	ts := newServer(t)
	f, err := NewLiveFetcher(ts.URL)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, f.Close())
	_, err = f.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
}

// newSilentServer accepts the websocket upgrade and never sends the init frame.
func newSilentServer(t *testing.T) *httptest.Server {
	t.Helper()
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		ts.Close()
	})
	return ts
}

func TestLiveFetcherHandshakeHonorsContext(t *testing.T) {
	ts := newSilentServer(t)
	f, err := NewLiveFetcher(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = f.Fetch(ctx, "q=tenant")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	closed := make(chan struct{})
	go func() {
		f.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked after a failed handshake")
	}
}

func TestLiveFetcherHandshakeTimeout(t *testing.T) {
	ts := newSilentServer(t)
	f, err := NewLiveFetcher(ts.URL)
	require.NoError(t, err)
	f.handshakeTimeout = 100 * time.Millisecond

	fetched := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), "")
		fetched <- err
	}()

	select {
	case err := <-fetched:
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "reading live handshake")
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch hung on a server that never sent init")
	}

	require.NoError(t, f.Close())
	_, err = f.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLiveFetcherCancelDuringHandshake(t *testing.T) {
	ts := newSilentServer(t)
	f, err := NewLiveFetcher(ts.URL)
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	fetched := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "")
		fetched <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-fetched:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch ignored cancellation during the handshake")
	}
}

func TestNewLiveFetcherURL(t *testing.T) {
	f, err := NewLiveFetcher("https://dir.example.org/")
	require.NoError(t, err)
	assert.Equal(t, "wss://dir.example.org/api/resources/live", f.wsURL)

	_, err = NewLiveFetcher("ftp://x")
	assert.Error(t, err)
}
