// Package source describes the travel index capability the repository queries.
// Decoding of the binary index files is provided by implementations of Source.
package source

import (
	"context"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
)

// POI subtypes stored in travel indexes.
const (
	SubtypeArticle      = "route_article"
	SubtypeArticlePoint = "route_article_point"
	SubtypeTrack        = "route_track"
)

// Tag keys read from travel records.
const (
	TagDescription    = "description"
	TagIsPart         = "is_part"
	TagIsParentOf     = "is_parent_of"
	TagIsAggrPart     = "is_aggr_part"
	TagContentJSON    = "content_json"
	TagImageTitle     = "image_title"
	TagRouteID        = "route_id"
	TagRouteSource    = "route_source"
	TagLangYes        = "lang_yes"
	TagColor          = "color"
	TagGpxIcon        = "gpx_icon"
	TagWebsite        = "website"
	TagCategoryPrefix = "category_"
	TagDistance       = "distance"
	TagDiffEleUp      = "diff_ele_up"
	TagDiffEleDown    = "diff_ele_down"
	TagUser           = "user"

	// Map object tags used to correlate line geometry with route records.
	TagRef  = "ref"
	TagName = "name"
)

// AnyDetailLevel disables the detail level constraint of an area query.
const AnyDetailLevel = -1

// Record is a decoded point of interest.
type Record interface {
	// Name returns the localized name, or the default name when lang is empty.
	Name(lang string) string
	// AllNames returns every localized name except the default one.
	AllNames() []string
	Location() geo.Point
	// Tag returns the value of key, or "" when absent.
	Tag(key string) string
	// LangTag returns the value of key:lang, or "" when absent.
	LangTag(key, lang string) string
	// InfoKeys lists the auxiliary tag keys present on the record.
	InfoKeys() []string
	// TagSuffix returns the remainder of the first tag key starting with prefix.
	TagSuffix(prefix string) (string, bool)
	SubType() string
}

// MapObject is a decoded map geometry object.
type MapObject interface {
	PointCount() int
	// Point31 returns the i-th point in 31-bit tile coordinates.
	Point31(i int) (x, y uint32)
	// TagValue returns the decoded value of a name-type tag, or "".
	TagValue(tag string) string
}

// Visitor receives streamed results. Returning false asks the source to stop.
type Visitor[T any] func(T) bool

// AreaQuery selects records within RadiusMeters of Center.
type AreaQuery struct {
	Center       geo.Point
	RadiusMeters float64
	DetailLevel  int
	Filter       TypeFilter
}

// NameQuery selects records whose names start with Prefix. A nil BBox means unconstrained.
type NameQuery struct {
	Prefix string
	BBox   *geo.Rect
	Filter TypeFilter
}

// GeometryQuery selects map objects. A nil BBox means the whole index.
type GeometryQuery struct {
	BBox        *geo.Rect
	DetailLevel int
}

// Source is one available travel index file. Implementations must be safe for
// concurrent use.
type Source interface {
	// File identifies the index file the records came from.
	File() string
	SearchArea(ctx context.Context, q AreaQuery, visit Visitor[Record]) error
	SearchName(ctx context.Context, q NameQuery, visit Visitor[Record]) error
	SearchGeometry(ctx context.Context, q GeometryQuery, visit Visitor[MapObject]) error
}

// Provider enumerates the sources currently reported as available.
type Provider interface {
	Sources() []Source
}

// Static is a Provider over a fixed list of sources.
type Static []Source

// Sources implements Provider.
func (s Static) Sources() []Source { return s }
