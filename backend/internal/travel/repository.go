package travel

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
	"github.com/DeafMist/travel-guide/backend/internal/metrics"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source"
)

const (
	// PopularLimit caps the popular list.
	PopularLimit = 30
	// ArticleSearchRadius bounds lookups around a known location, in meters.
	ArticleSearchRadius = 50000

	popularArticleRadius = 100000
	popularTrackRadius   = 10000
	popularTrackDetail   = 15
)

// SavedStore is the persisted article fallback consulted after the cache.
type SavedStore interface {
	SavedArticle(ctx context.Context, file, routeID, lang string) (*Article, error)
	SavedArticles(ctx context.Context, file, routeID string) ([]*Article, error)
}

// Repository resolves travel articles from the sources of a provider.
// Operations that read sources into the cache are serialized; geometry
// jobs run outside that lock.
type Repository struct {
	mu sync.Mutex

	provider     source.Provider
	cache        *Cache
	saved        SavedStore
	reader       *RecordReader
	routes       *RouteResolver
	materializer *Materializer
	collator     processing.Collator
	matcher      processing.MatcherFactory
	workers      int
	log          *slog.Logger

	popularMu sync.RWMutex
	popular   []*Article
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Without it the repository logs nothing.
func WithLogger(log *slog.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// WithSavedStore sets the fallback store for articles missing from sources.
func WithSavedStore(s SavedStore) Option {
	return func(r *Repository) { r.saved = s }
}

// WithCache shares an existing article cache.
func WithCache(c *Cache) Option {
	return func(r *Repository) { r.cache = c }
}

// WithCollator sets the title ordering used by search and navigation.
func WithCollator(c processing.Collator) Option {
	return func(r *Repository) { r.collator = c }
}

// WithMatcher sets the name matcher used by search.
func WithMatcher(m processing.MatcherFactory) Option {
	return func(r *Repository) { r.matcher = m }
}

// WithGeometryWorkers bounds the number of concurrent geometry jobs.
func WithGeometryWorkers(n int) Option {
	return func(r *Repository) { r.workers = n }
}

// NewRepository creates a repository over provider.
func NewRepository(provider source.Provider, opts ...Option) *Repository {
	r := &Repository{
		provider: provider,
		workers:  4,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.collator == nil {
		r.collator = processing.NewPrimaryCollator("")
	}
	if r.matcher == nil {
		r.matcher = processing.NewStartsFromSpace
	}
	r.reader = NewRecordReader(r.log)
	r.routes = NewRouteResolver(provider, r.log)
	r.materializer = NewMaterializer(provider, r.routes, r.log, r.workers)
	return r
}

// Close waits for running geometry jobs.
func (r *Repository) Close() {
	r.materializer.Close()
}

// Cache returns the article cache.
func (r *Repository) Cache() *Cache { return r.cache }

// AvailableSources lists the sources currently reported by the provider.
func (r *Repository) AvailableSources() []source.Source {
	return r.provider.Sources()
}

// AnyTravelBookPresent reports whether any source is available.
func (r *Repository) AnyTravelBookPresent() bool {
	return len(r.provider.Sources()) > 0
}

type located struct {
	file string
	rec  source.Record
	dist float64
}

// FindPopular lists up to PopularLimit articles nearest to center that have
// a name in lang, and replaces the popular snapshot with them.
func (r *Repository) FindPopular(ctx context.Context, center geo.Point, lang string) []*Article {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []located
	for _, src := range r.provider.Sources() {
		collect := func(rec source.Record) bool {
			found = append(found, located{
				file: src.File(),
				rec:  rec,
				dist: geo.Distance(center, rec.Location()),
			})
			return true
		}
		if err := src.SearchArea(ctx, source.AreaQuery{
			Center:       center,
			RadiusMeters: popularArticleRadius,
			DetailLevel:  source.AnyDetailLevel,
			Filter:       source.SubtypeFilter(source.SubtypeArticle),
		}, collect); err != nil {
			r.sourceError("popular", src, err)
		}
		if err := src.SearchArea(ctx, source.AreaQuery{
			Center:       center,
			RadiusMeters: popularTrackRadius,
			DetailLevel:  popularTrackDetail,
			Filter:       source.SubtypeFilter(source.SubtypeTrack),
		}, collect); err != nil {
			r.sourceError("popular", src, err)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	popular := make([]*Article, 0, min(len(found), PopularLimit))
	for _, f := range found {
		if len(popular) >= PopularLimit {
			break
		}
		if f.rec.Name(lang) == "" {
			continue
		}
		if a := r.cacheRecord(f.file, f.rec, lang); a != nil {
			popular = append(popular, a)
		}
	}

	r.popularMu.Lock()
	r.popular = popular
	r.popularMu.Unlock()
	return popular
}

// PopularArticles returns the snapshot taken by the last FindPopular call.
func (r *Repository) PopularArticles() []*Article {
	r.popularMu.RLock()
	defer r.popularMu.RUnlock()
	return append([]*Article(nil), r.popular...)
}

// Search matches description articles by name. Only records available in
// lang produce a result; results are ordered by title.
func (r *Repository) Search(ctx context.Context, query, lang string) []SearchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	nm := r.matcher(query)
	var res []SearchResult
	for _, src := range r.provider.Sources() {
		var matched []source.Record
		err := src.SearchName(ctx, source.NameQuery{
			Prefix: query,
			Filter: source.SubtypeFilter(source.SubtypeArticle),
		}, func(rec source.Record) bool {
			if nm.Matches(rec.Name(lang)) || processing.MatchesAny(nm, rec.AllNames()...) {
				matched = append(matched, rec)
			}
			return true
		})
		if err != nil {
			r.sourceError("search", src, err)
			continue
		}
		for _, rec := range matched {
			langs := Languages(rec)
			if !containsLang(langs, lang) {
				continue
			}
			a := r.reader.ReadArticle(src.File(), rec, lang)
			res = append(res, newSearchResult(a, OrderLanguages(langs, lang)))
		}
	}
	r.sortResults(res)
	return res
}

// GetByID returns the article identified by id in lang. The cache is
// consulted first, then the sources, then the saved store. When
// wantGeometry is set and lang is not empty, geometry is delivered to cb.
func (r *Repository) GetByID(ctx context.Context, id Identifier, lang string, wantGeometry bool, cb GeometryCallback) *Article {
	r.mu.Lock()
	id = r.resolveTitleOnly(id)
	a, cached := r.cache.Get(id, lang)
	if a == nil && !cached {
		a = r.findByID(ctx, id, lang)
	}
	r.mu.Unlock()

	if a != nil {
		if wantGeometry && lang != "" {
			r.materializer.Load(a, cb)
		}
		return a
	}

	a = r.savedArticle(ctx, id, lang)
	if a != nil && wantGeometry && cb != nil {
		f, _ := a.Geometry()
		cb.OnGeometryLoaded(f)
	}
	return a
}

// resolveTitleOnly swaps an identifier carrying only a title for the full
// identifier of a cached article with that title, so it shares the cache key.
func (r *Repository) resolveTitleOnly(id Identifier) Identifier {
	if id.RouteID != "" || id.HasLocation() || id.Title == "" {
		return id
	}
	known, ok := r.cache.FindByTitle(id.Title)
	if !ok || (id.File != "" && known.File != id.File) {
		return id
	}
	return known
}

// LoadGeometry requests the geometry of an article and returns a channel
// that receives it once.
func (r *Repository) LoadGeometry(a *Article, cb GeometryCallback) <-chan *gpx.File {
	return r.materializer.Load(a, cb)
}

// GetByTitle returns the first article whose name in lang equals title.
// A nil or empty bbox leaves the search unconstrained.
func (r *Repository) GetByTitle(ctx context.Context, title, lang string, bbox *geo.Rect, wantGeometry bool, cb GeometryCallback) *Article {
	r.mu.Lock()
	a := r.findByTitle(ctx, title, lang, bbox)
	r.mu.Unlock()

	if a != nil && wantGeometry && lang != "" {
		r.materializer.Load(a, cb)
	}
	return a
}

// GetByTitleNear is GetByTitle constrained to ArticleSearchRadius around near.
func (r *Repository) GetByTitleNear(ctx context.Context, title string, near geo.Point, lang string, wantGeometry bool, cb GeometryCallback) *Article {
	bbox := geo.BBoxAround(near, ArticleSearchRadius)
	return r.GetByTitle(ctx, title, lang, &bbox, wantGeometry, cb)
}

// ArticleID resolves the identifier of the article titled title, trying the
// cache before the sources.
func (r *Repository) ArticleID(ctx context.Context, title, lang string) (Identifier, bool) {
	if id, ok := r.cache.FindByTitle(title); ok {
		return id, true
	}
	a := r.GetByTitle(ctx, title, lang, nil, false, nil)
	if a == nil {
		return Identifier{}, false
	}
	return a.Identifier(), true
}

// ArticleLangs lists the languages id is available in.
func (r *Repository) ArticleLangs(ctx context.Context, id Identifier) []string {
	if a := r.GetByID(ctx, id, "", false, nil); a != nil {
		if langs := r.cache.Langs(a.Identifier()); len(langs) > 0 {
			return langs
		}
		return []string{a.Lang}
	}
	if r.saved == nil {
		return nil
	}
	saved, err := r.saved.SavedArticles(ctx, id.File, id.RouteID)
	if err != nil {
		r.log.Error("saved articles lookup failed", "file", id.File, "route_id", id.RouteID, slog.Any("err", err))
		return nil
	}
	langs := make([]string, 0, len(saved))
	for _, a := range saved {
		langs = append(langs, a.Lang)
	}
	return langs
}

// MaterializeTrack writes the track file of a into dir and returns its path.
// Route articles resolve their ways; other articles use attached geometry.
// An article without geometry produces a file without tracks or waypoints.
func (r *Repository) MaterializeTrack(ctx context.Context, a *Article, dir string) (string, error) {
	var f *gpx.File
	if a.Kind == KindRoute {
		f = r.routes.Resolve(ctx, a)
		if f != nil {
			a.AttachGeometry(f)
		}
	} else {
		f, _ = a.Geometry()
	}
	if f == nil {
		f = &gpx.File{Title: a.Title, Lang: a.Lang}
	}

	path := filepath.Join(dir, gpx.FileName(a.Title))
	if err := gpx.Write(path, f); err != nil {
		metrics.TrackExportsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("materialize track %q: %w", a.Title, err)
	}
	metrics.TrackExportsTotal.WithLabelValues("ok").Inc()
	r.log.Info("track file written", "title", a.Title, "path", path, "points", f.PointCount())
	return path, nil
}

// cacheRecord reads rec into the cache and returns its version in lang.
// Callers hold r.mu.
func (r *Repository) cacheRecord(file string, rec source.Record, lang string) *Article {
	articles := r.reader.Read(file, rec)
	id, ok := r.cache.Put(articles)
	if !ok {
		return nil
	}
	a, _ := r.cache.Get(id, lang)
	return a
}

// findByID queries the sources for id. Callers hold r.mu.
func (r *Repository) findByID(ctx context.Context, id Identifier, lang string) *Article {
	for _, src := range r.provider.Sources() {
		if id.File != "" && id.File != src.File() {
			continue
		}

		var hit source.Record
		visit := func(rec source.Record) bool {
			if rec.Name(lang) == id.Title && rec.Tag(source.TagRouteID) == id.RouteID {
				hit = rec
				return false
			}
			return true
		}

		var err error
		filter := source.SubtypeFilter(source.SubtypeArticle)
		switch {
		case id.HasLocation() && id.Title == "":
			err = src.SearchArea(ctx, source.AreaQuery{
				Center:       id.Point(),
				RadiusMeters: ArticleSearchRadius,
				DetailLevel:  source.AnyDetailLevel,
				Filter:       filter,
			}, visit)
		case id.HasLocation():
			bbox := geo.BBoxAround(id.Point(), ArticleSearchRadius)
			err = src.SearchName(ctx, source.NameQuery{Prefix: id.Title, BBox: &bbox, Filter: filter}, visit)
		default:
			err = src.SearchName(ctx, source.NameQuery{Prefix: id.Title, Filter: filter}, visit)
		}
		if err != nil {
			r.sourceError("get_by_id", src, err)
			continue
		}
		if hit == nil && id.RouteID != "" {
			hit = r.findTrack(ctx, src, id)
		}
		if hit != nil {
			return r.cacheRecord(src.File(), hit, lang)
		}
	}
	return nil
}

// findTrack returns the route record of src carrying id's route id. Route
// records are named after their track file, so only the route id is matched.
// Callers hold r.mu.
func (r *Repository) findTrack(ctx context.Context, src source.Source, id Identifier) source.Record {
	var hit source.Record
	visit := func(rec source.Record) bool {
		if rec.Tag(source.TagRouteID) == id.RouteID {
			hit = rec
			return false
		}
		return true
	}

	var err error
	filter := source.SubtypeFilter(source.SubtypeTrack)
	if id.HasLocation() {
		err = src.SearchArea(ctx, source.AreaQuery{
			Center:       id.Point(),
			RadiusMeters: ArticleSearchRadius,
			DetailLevel:  source.AnyDetailLevel,
			Filter:       filter,
		}, visit)
	} else {
		err = src.SearchName(ctx, source.NameQuery{Filter: filter}, visit)
	}
	if err != nil {
		r.sourceError("get_by_id", src, err)
		return nil
	}
	return hit
}

// findByTitle queries the sources for an exact title. Callers hold r.mu.
func (r *Repository) findByTitle(ctx context.Context, title, lang string, bbox *geo.Rect) *Article {
	if bbox != nil && bbox.Empty() {
		bbox = nil
	}
	for _, src := range r.provider.Sources() {
		hit := r.exactTitle(ctx, src, title, lang, bbox, "get_by_title")
		if hit != nil {
			return r.cacheRecord(src.File(), hit, lang)
		}
	}
	return nil
}

// exactTitle returns the first description record of src named title in lang.
func (r *Repository) exactTitle(ctx context.Context, src source.Source, title, lang string, bbox *geo.Rect, op string) source.Record {
	var hit source.Record
	err := src.SearchName(ctx, source.NameQuery{
		Prefix: title,
		BBox:   bbox,
		Filter: source.SubtypeFilter(source.SubtypeArticle),
	}, func(rec source.Record) bool {
		if rec.Name(lang) == title {
			hit = rec
			return false
		}
		return true
	})
	if err != nil {
		r.sourceError(op, src, err)
		return nil
	}
	return hit
}

func (r *Repository) savedArticle(ctx context.Context, id Identifier, lang string) *Article {
	if r.saved == nil {
		return nil
	}
	a, err := r.saved.SavedArticle(ctx, id.File, id.RouteID, lang)
	if err != nil {
		r.log.Error("saved article lookup failed", "file", id.File, "route_id", id.RouteID, "lang", lang, slog.Any("err", err))
		return nil
	}
	return a
}

func (r *Repository) sortResults(res []SearchResult) {
	sort.SliceStable(res, func(i, j int) bool {
		return r.collator.Compare(res[i].Title, res[j].Title) < 0
	})
}

func (r *Repository) sourceError(op string, src source.Source, err error) {
	metrics.SourceErrorsTotal.WithLabelValues(op).Inc()
	r.log.Error("travel source query failed", "op", op, "file", src.File(), slog.Any("err", err))
}

func newSearchResult(a *Article, langs []string) SearchResult {
	id := a.Identifier()
	return SearchResult{
		ID:         &id,
		Title:      a.Title,
		File:       a.File,
		Excerpt:    processing.Excerpt(processing.CleanText(a.Content), excerptWords),
		IsPartOf:   a.IsPartOf,
		ImageTitle: a.ImageTitle,
		Langs:      langs,
	}
}

const excerptWords = 40

func containsLang(langs []string, lang string) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}
