package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/travel-guide/backend/internal/config"
	"github.com/DeafMist/travel-guide/backend/internal/elasticsearch"
	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
	"github.com/DeafMist/travel-guide/backend/internal/metrics"
	"github.com/DeafMist/travel-guide/backend/internal/models"
	"github.com/DeafMist/travel-guide/backend/internal/popularcache"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source/yamlbook"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

const excerptWords = 40

func main() {
	_ = godotenv.Load()
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := connectElasticsearch(ctx, log, cfg)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	library := yamlbook.NewLibrary(cfg.BooksDir, log)
	if _, err := library.Reload(); err != nil {
		log.Error("load travel books", slog.Any("err", err))
		os.Exit(1)
	}

	repo := travel.NewRepository(library,
		travel.WithLogger(log),
		travel.WithSavedStore(esClient),
		travel.WithCollator(processing.NewPrimaryCollator(cfg.DefaultLang)),
		travel.WithGeometryWorkers(cfg.GeometryWorkers),
	)
	defer repo.Close()

	popular := popularcache.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.PopularCacheTTL)
	defer popular.Close()

	var exports *kafka.Writer
	if len(cfg.KafkaBrokers) > 0 {
		exports = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
		defer exports.Close()
	}

	srv := &server{
		log:     log,
		cfg:     cfg,
		repo:    repo,
		library: library,
		es:      esClient,
		popular: popular,
		exports: exports,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// connectElasticsearch waits for the bookmark store and prepares its index.
func connectElasticsearch(ctx context.Context, log *slog.Logger, cfg *config.API) (*elasticsearch.Client, error) {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, err
	}

	maxRetries := 10
	retryDelay := 2 * time.Second
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr := esClient.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}
		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", pingErr),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	if err := esClient.EnsureIndex(ctx); err != nil {
		// Bookmarks are a fallback; the API still serves travel books without them.
		log.Warn("saved article index unavailable", slog.Any("err", err))
	}
	return esClient, nil
}

type bookmarkStore interface {
	SaveArticle(ctx context.Context, a *travel.Article) error
	DeleteArticle(ctx context.Context, file, routeID, lang string) error
	SearchSaved(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	repo    *travel.Repository
	library *yamlbook.Library
	es      bookmarkStore
	popular *popularcache.Cache
	exports *kafka.Writer
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/popular", s.handlePopular)
	r.Get("/search", s.handleSearch)
	r.Get("/navigation", s.handleNavigation)

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", s.handleArticle)
		r.Get("/by-title", s.handleArticleByTitle)
		r.Get("/langs", s.handleArticleLangs)
	})

	r.Route("/bookmarks", func(r chi.Router) {
		r.Get("/", s.handleListBookmarks)
		r.Post("/", s.handleSaveBookmark)
		r.Delete("/", s.handleDeleteBookmark)
	})

	r.Post("/exports", s.handleExport)
	r.Post("/admin/reload", s.handleReload)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type articleResponse struct {
	models.ArticleSummary
	Content          string    `json:"content,omitempty"`
	ContentJSON      string    `json:"content_json,omitempty"`
	AggregatedPartOf string    `json:"aggregated_part_of,omitempty"`
	IsParentOf       string    `json:"is_parent_of,omitempty"`
	Geometry         *gpx.File `json:"geometry,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status":  "ok",
		"sources": len(s.repo.AvailableSources()),
	}
	if s.es != nil {
		if err := s.es.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["elasticsearch"] = err.Error()
		}
	}
	if err := s.popular.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["redis"] = err.Error()
	}
	if !s.repo.AnyTravelBookPresent() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no travel books available"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) handlePopular(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	center, ok := parsePoint(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lon are required"})
		return
	}
	lang := s.lang(r)

	items, hit, err := s.popular.Get(ctx, lang, center)
	if err != nil {
		s.log.Warn("popular cache read failed", slog.Any("err", err))
	}
	if hit {
		writeJSON(w, http.StatusOK, items)
		return
	}

	articles := s.repo.FindPopular(ctx, center, lang)
	items = make([]models.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		items = append(items, summarize(a, &center))
	}
	if err := s.popular.Set(ctx, lang, center, items); err != nil {
		s.log.Warn("popular cache write failed", slog.Any("err", err))
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res := s.repo.Search(ctx, query, s.lang(r))
	if res == nil {
		res = []travel.SearchResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleArticle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := parseIdentifier(r)
	lang := s.lang(r)
	a := s.repo.GetByID(ctx, id, lang, false, nil)
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return
	}
	s.writeArticle(ctx, w, r, a)
}

func (s *server) handleArticleByTitle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required"})
		return
	}
	lang := s.lang(r)

	var a *travel.Article
	if near, ok := parsePoint(r); ok {
		a = s.repo.GetByTitleNear(ctx, title, near, lang, false, nil)
	} else {
		a = s.repo.GetByTitle(ctx, title, lang, nil, false, nil)
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return
	}
	s.writeArticle(ctx, w, r, a)
}

// writeArticle renders a, waiting for its geometry when geometry=true is requested.
func (s *server) writeArticle(ctx context.Context, w http.ResponseWriter, r *http.Request, a *travel.Article) {
	resp := articleResponse{
		ArticleSummary:   summarize(a, nil),
		Content:          a.Content,
		ContentJSON:      a.ContentJSON,
		AggregatedPartOf: a.AggregatedPartOf,
		IsParentOf:       a.IsParentOf,
	}
	if want, _ := strconv.ParseBool(r.URL.Query().Get("geometry")); want {
		select {
		case f := <-s.repo.LoadGeometry(a, nil):
			resp.Geometry = f
		case <-ctx.Done():
			writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "geometry is still loading"})
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleArticleLangs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	langs := s.repo.ArticleLangs(ctx, parseIdentifier(r))
	if langs == nil {
		langs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"langs": langs})
}

func (s *server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required"})
		return
	}
	a := s.repo.GetByTitle(ctx, title, s.lang(r), nil, false, nil)
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return
	}
	tree := s.repo.BuildNavigationTree(ctx, a)
	if tree == nil {
		tree = []travel.NavigationEntry{}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := elasticsearch.SearchParams{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Lang:  strings.TrimSpace(r.URL.Query().Get("lang")),
		From:  clampInt(r.URL.Query().Get("from"), 0, 10_000),
		Size:  clampInt(r.URL.Query().Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
	}
	result, err := s.es.SearchSaved(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleSaveBookmark(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	a := s.repo.GetByID(ctx, requestIdentifier(req), req.Lang, false, nil)
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return
	}
	if a.Kind == travel.KindDescription {
		select {
		case <-s.repo.LoadGeometry(a, nil):
		case <-ctx.Done():
			writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "geometry is still loading"})
			return
		}
	}
	if err := s.es.SaveArticle(ctx, a); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, summarize(a, nil))
}

func (s *server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	if err := s.es.DeleteArticle(ctx, q.Get("file"), q.Get("route_id"), s.lang(r)); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "track exports are disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	req.RequestID = uuid.NewString()
	req.RequestedAt = time.Now().UTC()

	payload, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	msg := kafka.Message{Key: []byte(req.File + "|" + req.RouteID), Value: payload}
	if err := s.exports.WriteMessages(ctx, msg); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": req.RequestID,
		"file_name":  gpx.FileName(req.Title),
	})
}

func (s *server) handleReload(w http.ResponseWriter, _ *http.Request) {
	n, err := s.library.Reload()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sources": n})
}

func (s *server) decodeRequest(w http.ResponseWriter, r *http.Request) (models.ExportRequest, bool) {
	var req models.ExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" && req.RouteID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title or route_id is required"})
		return req, false
	}
	if req.Lang == "" {
		req.Lang = s.cfg.DefaultLang
	}
	return req, true
}

func (s *server) lang(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return lang
	}
	return s.cfg.DefaultLang
}

func summarize(a *travel.Article, from *geo.Point) models.ArticleSummary {
	out := models.ArticleSummary{
		Kind:     a.Kind.String(),
		Title:    a.Title,
		Lang:     a.Lang,
		File:     a.File,
		RouteID:  a.RouteID,
		Lat:      a.Location.Lat,
		Lon:      a.Location.Lon,
		Excerpt:  processing.Excerpt(a.Content, excerptWords),
		IsPartOf: a.IsPartOf,
		ImageURL: a.ImageURL(),
	}
	if from != nil {
		out.Distance = geo.Distance(*from, a.Location)
	}
	if a.Route != nil {
		out.Route = &models.RouteStats{
			Distance:      a.Route.Distance,
			ElevationGain: a.Route.ElevationGain,
			ElevationLoss: a.Route.ElevationLoss,
			User:          a.Route.User,
		}
	}
	return out
}

func requestIdentifier(req models.ExportRequest) travel.Identifier {
	id := travel.Identifier{File: req.File, RouteID: req.RouteID, Title: req.Title, Lat: travel.NoLocation, Lon: travel.NoLocation}
	if req.Lat != nil && req.Lon != nil {
		id.Lat, id.Lon = *req.Lat, *req.Lon
	}
	return id
}

func parseIdentifier(r *http.Request) travel.Identifier {
	q := r.URL.Query()
	id := travel.Identifier{
		File:    q.Get("file"),
		RouteID: q.Get("route_id"),
		Title:   q.Get("title"),
		Lat:     travel.NoLocation,
		Lon:     travel.NoLocation,
	}
	if p, ok := parsePoint(r); ok {
		id.Lat, id.Lon = p.Lat, p.Lon
	}
	return id
}

func parsePoint(r *http.Request) (geo.Point, bool) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
