package travel_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/source"
	"github.com/DeafMist/travel-guide/backend/internal/source/yamlbook"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

const europeFile = "Europe.travel.obf"

const europeBook = `
file: Europe.travel.obf
records:
  - subtype: route_article
    name: Paris
    names: {en: Paris, fr: Paris}
    lat: 48.8566
    lon: 2.3522
    tags:
      "description:en": "<p>Paris is the capital of France.</p>"
      "description:fr": "Paris est la capitale de la France."
      "is_part:en": "Île-de-France,France"
      "is_parent_of:en": "Montmartre;Louvre district"
      image_title: "Paris montage.jpg"
      route_id: Q90
  - subtype: route_article
    name: France
    names: {en: France}
    lat: 46.6
    lon: 1.9
    tags:
      "description:en": "A country in Europe."
      "is_parent_of:en": "Normandy;Île-de-France"
      route_id: Q142
  - subtype: route_article
    name: Île-de-France
    names: {en: Île-de-France}
    lat: 48.7
    lon: 2.5
    tags:
      "description:en": "The region around Paris."
      "is_part:en": "France"
      "is_parent_of:en": "Versailles;Paris"
      route_id: Q13917
  - subtype: route_article_point
    name: Louvre Museum
    lat: 48.8606
    lon: 2.3376
    tags:
      "lang_yes:en": "yes"
      "description:en": "Art museum."
      route_id: Q90
      color: red
      gpx_icon: tourism_museum
      category_see: "yes"
      website: https://www.louvre.fr
  - subtype: route_article_point
    name: Musée d'Orsay
    lat: 48.86
    lon: 2.3266
    tags:
      "lang_yes:fr": "yes"
      route_id: Q90
  - subtype: route_track
    name: alpine_loop.gpx
    names: {en: alpine_loop}
    lat: 45.0
    lon: 6.0
    tags:
      route_id: R000123
      distance: abc
      diff_ele_up: "120.5"
      diff_ele_down: "80"
      user: hiker
objects:
  - tags: {ref: "123", name: alpine_loop}
    points: [[45.0, 6.0], [45.01, 6.01], [45.02, 6.02]]
  - tags: {ref: "123", name: alpine_loop}
    points: [[45.02, 6.02], [45.03, 6.03]]
  - tags: {ref: "123", name: other_loop}
    points: [[45.0, 6.0], [45.5, 6.5]]
  - tags: {ref: "999", name: alpine_loop}
    points: [[45.0, 6.0], [45.5, 6.5]]
  - tags: {ref: "123", name: alpine_loop}
    points: [[45.0, 6.0]]
`

func loadBook(t *testing.T, doc string) *yamlbook.Book {
	t.Helper()
	b, err := yamlbook.Parse([]byte(doc))
	require.NoError(t, err)
	return b
}

func newRepo(t *testing.T, sources []source.Source, opts ...travel.Option) *travel.Repository {
	t.Helper()
	repo := travel.NewRepository(source.Static(sources), opts...)
	t.Cleanup(repo.Close)
	return repo
}

// countingSource counts every query issued to the wrapped source.
type countingSource struct {
	source.Source
	mu    sync.Mutex
	count int
}

func (c *countingSource) inc() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countingSource) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *countingSource) SearchArea(ctx context.Context, q source.AreaQuery, visit source.Visitor[source.Record]) error {
	c.inc()
	return c.Source.SearchArea(ctx, q, visit)
}

func (c *countingSource) SearchName(ctx context.Context, q source.NameQuery, visit source.Visitor[source.Record]) error {
	c.inc()
	return c.Source.SearchName(ctx, q, visit)
}

func (c *countingSource) SearchGeometry(ctx context.Context, q source.GeometryQuery, visit source.Visitor[source.MapObject]) error {
	c.inc()
	return c.Source.SearchGeometry(ctx, q, visit)
}

// gatedSource blocks name queries until release is closed.
type gatedSource struct {
	countingSource
	release chan struct{}
}

func (g *gatedSource) SearchName(ctx context.Context, q source.NameQuery, visit source.Visitor[source.Record]) error {
	<-g.release
	return g.countingSource.SearchName(ctx, q, visit)
}

type failingSource struct{}

var errBroken = errors.New("broken index")

func (failingSource) File() string { return "Broken.travel.obf" }

func (failingSource) SearchArea(context.Context, source.AreaQuery, source.Visitor[source.Record]) error {
	return errBroken
}

func (failingSource) SearchName(context.Context, source.NameQuery, source.Visitor[source.Record]) error {
	return errBroken
}

func (failingSource) SearchGeometry(context.Context, source.GeometryQuery, source.Visitor[source.MapObject]) error {
	return errBroken
}

// recorder captures geometry callbacks in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	file   *gpx.File
	done   chan struct{}
}

func newRecorder() *recorder { return &recorder{done: make(chan struct{})} }

func (r *recorder) OnGeometryLoading() {
	r.mu.Lock()
	r.events = append(r.events, "loading")
	r.mu.Unlock()
}

func (r *recorder) OnGeometryLoaded(f *gpx.File) {
	r.mu.Lock()
	r.events = append(r.events, "loaded")
	r.file = f
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type savedStub struct {
	article *travel.Article
	langs   []string
}

func (s savedStub) SavedArticle(_ context.Context, file, routeID, lang string) (*travel.Article, error) {
	if s.article != nil && s.article.File == file && s.article.RouteID == routeID && s.article.Lang == lang {
		return s.article, nil
	}
	return nil, nil
}

func (s savedStub) SavedArticles(_ context.Context, file, routeID string) ([]*travel.Article, error) {
	var out []*travel.Article
	for _, l := range s.langs {
		out = append(out, &travel.Article{File: file, RouteID: routeID, Lang: l})
	}
	return out, nil
}
