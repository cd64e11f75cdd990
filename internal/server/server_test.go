package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kamusis/upksearch/internal/catalog"
	"github.com/kamusis/upksearch/internal/config"
	"github.com/kamusis/upksearch/internal/embeddings"
	"github.com/kamusis/upksearch/internal/embeddings/embeddingstest"
	"github.com/kamusis/upksearch/internal/search"
	"github.com/kamusis/upksearch/internal/search/index"
)

// newTestServer wires a real engine over an in-memory catalog. When build is
// set the index is rebuilt before the server is returned.
func newTestServer(t *testing.T, build bool) (*Server, *search.Engine) {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	_, err = cat.Insert(ctx, []catalog.Record{
		{Package: "pkgA", AssetType: "StaticMesh", AssetName: "Fuel_Drum"},
		{Package: "pkgA", AssetType: "Texture2D", AssetName: "Blue_Barrel_Diffuse"},
		{Package: "pkgB", AssetType: "StaticMesh", AssetName: "Rail_Track"},
	})
	require.NoError(t, err)

	enc, err := embeddings.New(ctx, embeddingstest.NewLexical(64), embeddings.Options{})
	require.NoError(t, err)
	store := index.NewStore(filepath.Join(t.TempDir(), "assets"), enc, nil)
	eng := search.New(enc, cat, store, search.DefaultOptions())
	if build {
		_, err := eng.Rebuild(ctx)
		require.NoError(t, err)
	}
	return New(eng, config.Server{Addr: "127.0.0.1:0"}, nil), eng
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := get(t, s, "/search?q=blue+barrel&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got []search.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Blue_Barrel_Diffuse", got[0].AssetName)
	require.Equal(t, "pkgA", got[0].Package)
}

func TestSearchEndpoint_EmptyResultIsArray(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := get(t, s, "/search?q=drum&pkg=pkgB")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearchEndpoint_BadLimit(t *testing.T) {
	s, _ := newTestServer(t, true)

	for _, target := range []string{"/search?q=x&limit=0", "/search?q=x&limit=ten", "/search?q=x&min_score=high"} {
		rec := get(t, s, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchEndpoint_IndexUnavailable(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := get(t, s, "/search?q=drum")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"error":"index unavailable, build first"}`, rec.Body.String())

	rec = get(t, s, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReindexThenHealthy(t *testing.T) {
	s, eng := newTestServer(t, false)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reindex", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st search.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.True(t, st.Ready)
	require.Equal(t, 3, st.Entries)
	require.Equal(t, eng.Status().Generation, st.Generation)

	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/status").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)
	get(t, s, "/search?q=drum")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "upksearch_search_latency_seconds")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, true)

	for _, path := range []string{"/search", "/status", "/healthz", "/reindex", "/metrics"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, path, nil))
		require.Equal(t, http.StatusNoContent, rec.Code, path)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST", path)
	}
}
