package integration_tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rubiojr/resdir/pkg/api"
	"github.com/rubiojr/resdir/pkg/catalog"
	"github.com/rubiojr/resdir/pkg/controller"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/search"
	"github.com/rubiojr/resdir/pkg/storage"
)

const catalogFixture = "../pkg/catalog/testdata/directory.toml"

// newDirectory imports the sample catalog into a fresh sqlite database and
// serves it over HTTP.
func newDirectory(t *testing.T) (*storage.Store, *httptest.Server) {
	t.Helper()

	store, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "resdir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate()
	require.NoError(t, err)

	cat, err := catalog.Load(catalogFixture)
	require.NoError(t, err)
	_, err = cat.Apply(context.Background(), store)
	require.NoError(t, err)

	svc := search.NewService(store, search.DefaultSettings())
	srv := httptest.NewServer(api.NewServer(svc, store, nil).Handler())
	t.Cleanup(srv.Close)
	return store, srv
}

// searchAPI performs a plain GET against the search endpoint.
func searchAPI(t *testing.T, base string, params url.Values) (int, *core.ResultPage) {
	t.Helper()
	resp, err := http.Get(base + "/api/resources/search?" + params.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var page core.ResultPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	return resp.StatusCode, &page
}

// settled waits until the controller is idle and match accepts its state.
func settled(t *testing.T, ctrl *controller.Controller, match func(controller.State) bool) controller.State {
	t.Helper()
	var last controller.State
	require.Eventually(t, func() bool {
		last = ctrl.State()
		return !last.IsLoading && match(last)
	}, 5*time.Second, 10*time.Millisecond)
	return last
}

func resultNames(st controller.State) []string {
	names := make([]string, len(st.Results))
	for i, r := range st.Results {
		names[i] = r.Name
	}
	return names
}
