package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/config"
	"github.com/DeafMist/travel-guide/backend/internal/elasticsearch"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
	"github.com/DeafMist/travel-guide/backend/internal/models"
	"github.com/DeafMist/travel-guide/backend/internal/source/yamlbook"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

const savoieBook = `
file: Savoie.travel.obf
records:
  - subtype: route_article
    name: Annecy
    names: {en: Annecy}
    lat: 45.8992
    lon: 6.1294
    tags:
      "description:en": "<p>Annecy sits on the shore of a clear alpine lake.</p>"
      "is_part:en": "Haute-Savoie"
      image_title: "Annecy lake.jpg"
      route_id: Q50
  - subtype: route_article
    name: Haute-Savoie
    names: {en: Haute-Savoie}
    lat: 46.0
    lon: 6.4
    tags:
      "description:en": "A department in the French Alps."
      "is_parent_of:en": "Chamonix;Annecy"
      route_id: Q12751
  - subtype: route_article_point
    name: Palais de l'Isle
    lat: 45.8986
    lon: 6.1287
    tags:
      "lang_yes:en": "yes"
      route_id: Q50
`

const jurasBook = `
file: Jura.travel.obf
records:
  - subtype: route_article
    name: Besancon
    names: {en: Besancon}
    lat: 47.24
    lon: 6.02
    tags:
      "description:en": "A fortified city."
      route_id: Q37776
`

type fakeBookmarks struct {
	mu     sync.Mutex
	saved  []*travel.Article
	params elasticsearch.SearchParams
}

func (f *fakeBookmarks) SaveArticle(_ context.Context, a *travel.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeBookmarks) DeleteArticle(context.Context, string, string, string) error { return nil }

func (f *fakeBookmarks) SearchSaved(_ context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = params
	return &elasticsearch.SearchResult{Total: int64(len(f.saved))}, nil
}

func (f *fakeBookmarks) Health(context.Context) error { return nil }

func newTestServer(t *testing.T) (*server, string, *fakeBookmarks) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "savoie.yaml"), []byte(savoieBook), 0o644))

	log := logger.Discard()
	library := yamlbook.NewLibrary(dir, log)
	n, err := library.Reload()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	repo := travel.NewRepository(library, travel.WithLogger(log))
	t.Cleanup(repo.Close)

	bookmarks := &fakeBookmarks{}
	cfg := &config.API{DefaultPage: 20, MaxPage: 50}
	cfg.DefaultLang = "en"
	return &server{log: log, cfg: cfg, repo: repo, library: library, es: bookmarks}, dir, bookmarks
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.EqualValues(t, 1, body["sources"])
}

func TestSearchHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodGet, "/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/search?q=Anne&lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []travel.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, "Annecy", results[0].Title)
	require.Equal(t, []string{"en"}, results[0].Langs)
}

func TestPopularHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodGet, "/popular?lat=95&lon=6", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/popular?lat=45.9&lon=6.13&lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []models.ArticleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.NotEmpty(t, items)

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
		require.Equal(t, "description", it.Kind)
	}
	require.Contains(t, titles, "Annecy")
}

func TestArticleByTitleHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodGet, "/articles/by-title?title=Annecy&lang=en&geometry=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp articleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Annecy", resp.Title)
	require.Equal(t, "Haute-Savoie", resp.IsPartOf)
	require.True(t, strings.HasPrefix(resp.Excerpt, "Annecy sits on the shore"))
	require.Contains(t, resp.ImageURL, "Annecy_lake.jpg")
	require.NotNil(t, resp.Geometry)
	require.Len(t, resp.Geometry.Waypoints, 1)
	require.Equal(t, "Palais de l'Isle", resp.Geometry.Waypoints[0].Name)

	rec = do(t, h, http.MethodGet, "/articles/by-title?title=Grenoble&lang=en", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArticleLangsHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/articles/langs?file=Savoie.travel.obf&route_id=Q50&title=Annecy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Langs []string `json:"langs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"en"}, body.Langs)
}

func TestNavigationHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodGet, "/navigation?title=Annecy&lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tree []travel.NavigationEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Len(t, tree, 1)
	require.Equal(t, "Haute-Savoie", tree[0].Header.Title)
	require.Len(t, tree[0].Children, 2)
	require.Equal(t, "Annecy", tree[0].Children[0].Title)
	require.Equal(t, "Chamonix", tree[0].Children[1].Title)
}

func TestBookmarkHandlers(t *testing.T) {
	srv, _, bookmarks := newTestServer(t)
	h := srv.routes()

	rec := do(t, h, http.MethodPost, "/bookmarks", `{"file":"Savoie.travel.obf","route_id":"Q50","title":"Annecy"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, bookmarks.saved, 1)
	require.True(t, bookmarks.saved[0].GeometryLoaded())

	rec = do(t, h, http.MethodPost, "/bookmarks", `{"lang":"en"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/bookmarks?size=500&lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 50, bookmarks.params.Size)
	require.Equal(t, "en", bookmarks.params.Lang)

	rec = do(t, h, http.MethodDelete, "/bookmarks?file=Savoie.travel.obf&route_id=Q50", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportDisabledWithoutBrokers(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.routes(), http.MethodPost, "/exports", `{"title":"Annecy"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReloadPicksUpNewBooks(t *testing.T) {
	srv, dir, _ := newTestServer(t)
	h := srv.routes()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jura.yml"), []byte(jurasBook), 0o644))
	rec := do(t, h, http.MethodPost, "/admin/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body["sources"])

	rec = do(t, h, http.MethodGet, "/search?q=Besancon&lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Besancon")
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 20, clampInt("", 20, 50))
	require.Equal(t, 20, clampInt("abc", 20, 50))
	require.Equal(t, 20, clampInt("-3", 20, 50))
	require.Equal(t, 50, clampInt("80", 20, 50))
	require.Equal(t, 7, clampInt("7", 20, 50))
}
