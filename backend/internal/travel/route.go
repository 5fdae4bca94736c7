package travel

import (
	"context"
	"log/slog"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/metrics"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source"
)

const (
	// routeDetailLevel is the zoom at which route ways are stored.
	routeDetailLevel = 15
	routeRefLength   = 3
)

// RouteResolver rebuilds the line geometry of route articles from map ways.
type RouteResolver struct {
	provider source.Provider
	log      *slog.Logger
}

// NewRouteResolver creates a resolver over the sources of provider.
func NewRouteResolver(provider source.Provider, log *slog.Logger) *RouteResolver {
	if log == nil {
		log = slog.Default()
	}
	return &RouteResolver{provider: provider, log: log}
}

// RouteRef returns the way reference code of a route id: its last three characters.
func RouteRef(routeID string) string {
	r := []rune(routeID)
	if len(r) <= routeRefLength {
		return routeID
	}
	return string(r[len(r)-routeRefLength:])
}

// Resolve scans map ways for the segments of a route article. Sources are
// scanned in order and scanning stops after the first source with matches.
// It returns nil when nothing matches.
func (rr *RouteResolver) Resolve(ctx context.Context, a *Article) *gpx.File {
	if a == nil || a.RouteID == "" {
		return nil
	}
	ref := RouteRef(a.RouteID)

	var ways []source.MapObject
	for _, src := range rr.provider.Sources() {
		if a.File != "" && a.File != src.File() {
			continue
		}
		var found []source.MapObject
		err := src.SearchGeometry(ctx, source.GeometryQuery{DetailLevel: routeDetailLevel}, func(o source.MapObject) bool {
			if o.PointCount() > 1 &&
				o.TagValue(source.TagRef) == ref &&
				processing.TrackTitle(o.TagValue(source.TagName)) == a.Title {
				found = append(found, o)
			}
			return true
		})
		if err != nil {
			metrics.SourceErrorsTotal.WithLabelValues("geometry").Inc()
			rr.log.Error("route geometry scan failed", "file", src.File(), "route_id", a.RouteID, slog.Any("err", err))
			continue
		}
		if len(found) > 0 {
			ways = found
			break
		}
	}
	if len(ways) == 0 {
		return nil
	}

	track := gpx.Track{Segments: make([]gpx.Segment, 0, len(ways))}
	for _, w := range ways {
		seg := gpx.Segment{Points: make([]geo.Point, 0, w.PointCount())}
		for i := 0; i < w.PointCount(); i++ {
			x, y := w.Point31(i)
			seg.Points = append(seg.Points, geo.Point{Lat: geo.LatFromTile31(y), Lon: geo.LonFromTile31(x)})
		}
		track.Segments = append(track.Segments, seg)
	}
	return &gpx.File{Title: a.Title, Lang: a.Lang, Tracks: []gpx.Track{track}}
}
