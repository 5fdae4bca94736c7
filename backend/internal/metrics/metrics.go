package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_source_errors_total",
		Help: "Travel index query failures by operation",
	}, []string{"op"})
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_cache_lookups_total",
		Help: "Article cache lookups by result",
	}, []string{"result"})
	GeometryJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_geometry_jobs_total",
		Help: "Geometry materialization jobs by article kind and result",
	}, []string{"kind", "result"})
	GeometryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "travel_geometry_duration_ms",
		Help:    "Geometry materialization duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	PopularCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_popular_cache_total",
		Help: "Popular list cache lookups by result",
	}, []string{"result"})
	TrackExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travel_track_exports_total",
		Help: "Track file exports by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(SourceErrorsTotal)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(GeometryJobsTotal)
	prometheus.MustRegister(GeometryDurationMs)
	prometheus.MustRegister(PopularCacheTotal)
	prometheus.MustRegister(TrackExportsTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
