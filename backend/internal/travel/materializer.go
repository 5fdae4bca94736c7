package travel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/metrics"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source"
)

// GeometryCallback observes geometry materialization of one article.
// OnGeometryLoading is called before any work starts and OnGeometryLoaded
// exactly once afterwards, with nil when nothing was found. Callbacks may
// run on a background goroutine.
type GeometryCallback interface {
	OnGeometryLoading()
	OnGeometryLoaded(f *gpx.File)
}

// CallbackFuncs adapts plain functions to GeometryCallback. Nil fields are skipped.
type CallbackFuncs struct {
	Loading func()
	Loaded  func(f *gpx.File)
}

func (c CallbackFuncs) OnGeometryLoading() {
	if c.Loading != nil {
		c.Loading()
	}
}

func (c CallbackFuncs) OnGeometryLoaded(f *gpx.File) {
	if c.Loaded != nil {
		c.Loaded(f)
	}
}

type waiter struct {
	cb GeometryCallback
	ch chan *gpx.File
}

// Materializer loads article geometry on a bounded pool of background
// goroutines. Requests for an article whose job is already running join
// that job instead of starting another.
type Materializer struct {
	provider source.Provider
	routes   *RouteResolver
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[*Article][]waiter
	closed  bool
}

// NewMaterializer creates a materializer running at most workers jobs at once.
func NewMaterializer(provider source.Provider, routes *RouteResolver, log *slog.Logger, workers int) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Materializer{
		provider: provider,
		routes:   routes,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, workers),
		pending:  make(map[*Article][]waiter),
	}
}

// Load delivers the geometry of a through the returned channel and cb.
// When geometry is already loaded both happen before Load returns and no
// source is queried.
func (m *Materializer) Load(a *Article, cb GeometryCallback) <-chan *gpx.File {
	ch := make(chan *gpx.File, 1)
	if f, loaded := a.Geometry(); loaded {
		deliver(waiter{cb: cb, ch: ch}, f)
		return ch
	}

	if cb != nil {
		cb.OnGeometryLoading()
	}

	m.mu.Lock()
	if f, loaded := a.Geometry(); loaded || m.closed {
		m.mu.Unlock()
		deliver(waiter{cb: cb, ch: ch}, f)
		return ch
	}
	waiters, running := m.pending[a]
	m.pending[a] = append(waiters, waiter{cb: cb, ch: ch})
	if !running {
		m.wg.Add(1)
		go m.run(a)
	}
	m.mu.Unlock()
	return ch
}

// Close stops accepting jobs, cancels running ones and waits for them.
func (m *Materializer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Materializer) run(a *Article) {
	defer m.wg.Done()

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	jobID := uuid.NewString()
	log := m.log.With("job_id", jobID, "title", a.Title, "lang", a.Lang, "kind", a.Kind.String())
	log.Debug("geometry job started")
	start := time.Now()

	var f *gpx.File
	if a.Kind == KindRoute {
		f = m.routes.Resolve(m.ctx, a)
	} else {
		f = m.waypoints(m.ctx, a)
	}

	result := "found"
	if f == nil {
		result = "empty"
	}
	metrics.GeometryJobsTotal.WithLabelValues(a.Kind.String(), result).Inc()
	metrics.GeometryDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	log.Debug("geometry job finished", "result", result, "duration", time.Since(start))

	m.mu.Lock()
	if !a.AttachGeometry(f) {
		f, _ = a.Geometry()
	}
	waiters := m.pending[a]
	delete(m.pending, a)
	m.mu.Unlock()

	for _, w := range waiters {
		deliver(w, f)
	}
}

func deliver(w waiter, f *gpx.File) {
	if w.cb != nil {
		w.cb.OnGeometryLoaded(f)
	}
	w.ch <- f
	close(w.ch)
}

// waypoints builds the track file of a description article from its point
// records. It returns nil when the article has no points.
func (m *Materializer) waypoints(ctx context.Context, a *Article) *gpx.File {
	points := m.pointList(ctx, a)
	if len(points) == 0 {
		return nil
	}
	f := &gpx.File{
		Title:       a.Title,
		Lang:        a.Lang,
		Description: a.Content,
		Link:        ImageURL(a.ImageTitle),
	}
	for _, r := range points {
		f.AddWaypoint(NewWaypoint(r, a.Lang))
	}
	return f
}

func (m *Materializer) pointList(ctx context.Context, a *Article) []source.Record {
	var out []source.Record
	for _, src := range m.provider.Sources() {
		if a.File != "" && a.File != src.File() {
			continue
		}
		err := src.SearchName(ctx, source.NameQuery{
			Filter: source.SubtypeFilter(source.SubtypeArticlePoint),
		}, func(r source.Record) bool {
			lang, _ := r.TagSuffix(source.TagLangYes + ":")
			if lang == a.Lang && r.Tag(source.TagRouteID) == a.RouteID {
				out = append(out, r)
			}
			return true
		})
		if err != nil {
			metrics.SourceErrorsTotal.WithLabelValues("points").Inc()
			m.log.Error("point list query failed", "file", src.File(), "title", a.Title, slog.Any("err", err))
		}
	}
	return out
}

// NewWaypoint converts an article point record into a waypoint.
func NewWaypoint(r source.Record, lang string) gpx.Waypoint {
	w := gpx.Waypoint{
		Name:        r.Name(""),
		Point:       r.Location(),
		Description: r.LangTag(source.TagDescription, lang),
		Link:        r.Tag(source.TagWebsite),
		Color:       ColorByTag(r.Tag(source.TagColor)),
		Icon:        r.Tag(source.TagGpxIcon),
	}
	if category, ok := r.TagSuffix(source.TagCategoryPrefix); ok {
		w.Category = processing.CapitalizeFirst(category)
	}
	return w
}
