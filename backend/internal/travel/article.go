// Package travel implements the travel article repository: popular lists,
// search, lookups, navigation trees and track file materialization over the
// travel indexes reported by a source.Provider.
package travel

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
)

// Kind distinguishes plain description articles from route (track) articles.
type Kind int

const (
	KindDescription Kind = iota
	KindRoute
)

func (k Kind) String() string {
	if k == KindRoute {
		return "route"
	}
	return "description"
}

// Identifier locates an article independently of its language.
type Identifier struct {
	File    string  `json:"file,omitempty"`
	RouteID string  `json:"route_id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NoLocation is used for identifier coordinates that are unknown.
var NoLocation = math.NaN()

// HasLocation reports whether the identifier carries coordinates.
func (id Identifier) HasLocation() bool {
	return !math.IsNaN(id.Lat) && !math.IsNaN(id.Lon)
}

// Point returns the identifier coordinates.
func (id Identifier) Point() geo.Point { return geo.Point{Lat: id.Lat, Lon: id.Lon} }

type cacheKey struct {
	file  string
	route string
}

// key groups every language version of one article. Articles without a
// route id are grouped by rounded coordinates, which all translations share.
func (id Identifier) key() cacheKey {
	if id.RouteID != "" {
		return cacheKey{file: id.File, route: id.RouteID}
	}
	if !id.HasLocation() {
		return cacheKey{file: id.File, route: "title:" + id.Title}
	}
	return cacheKey{
		file:  id.File,
		route: "@" + strconv.FormatFloat(id.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(id.Lon, 'f', 5, 64),
	}
}

// RouteStats carries the statistics of a route article.
type RouteStats struct {
	Distance      float64 `json:"distance"`
	ElevationGain float64 `json:"elevation_gain"`
	ElevationLoss float64 `json:"elevation_loss"`
	User          string  `json:"user,omitempty"`
}

// Article is one language version of a travel article. Geometry is attached
// at most once and never replaced afterwards.
type Article struct {
	Kind             Kind
	File             string
	Title            string
	Lang             string
	Content          string
	ContentJSON      string
	IsPartOf         string
	AggregatedPartOf string
	IsParentOf       string
	ImageTitle       string
	RouteID          string
	RouteSource      string
	Location         geo.Point
	Route            *RouteStats

	mu             sync.Mutex
	geometryLoaded bool
	geometry       *gpx.File
}

// Identifier returns the language independent identity of the article.
func (a *Article) Identifier() Identifier {
	return Identifier{
		File:    a.File,
		RouteID: a.RouteID,
		Title:   a.Title,
		Lat:     a.Location.Lat,
		Lon:     a.Location.Lon,
	}
}

// Geometry returns the attached track file and whether geometry has been
// materialized. A loaded article may still have a nil file.
func (a *Article) Geometry() (*gpx.File, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.geometry, a.geometryLoaded
}

// GeometryLoaded reports whether geometry materialization has completed.
func (a *Article) GeometryLoaded() bool {
	_, loaded := a.Geometry()
	return loaded
}

// AttachGeometry marks the geometry as loaded with f. It returns false when
// geometry was already attached, in which case f is ignored.
func (a *Article) AttachGeometry(f *gpx.File) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.geometryLoaded {
		return false
	}
	a.geometry = f
	a.geometryLoaded = true
	return true
}

// ImageURL returns the Wikimedia Commons URL for the article image, or "".
func (a *Article) ImageURL() string { return ImageURL(a.ImageTitle) }

const commonsImagePrefix = "https://upload.wikimedia.org/wikipedia/commons/"

// ImageURL derives the Commons upload URL of an image title.
func ImageURL(imageTitle string) string {
	if imageTitle == "" {
		return ""
	}
	name := strings.ReplaceAll(imageTitle, " ", "_")
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	sum := md5.Sum([]byte(name))
	h := hex.EncodeToString(sum[:])
	return commonsImagePrefix + h[:1] + "/" + h[:2] + "/" + url.QueryEscape(name)
}

// SearchResult is a lightweight article reference.
type SearchResult struct {
	ID         *Identifier `json:"id,omitempty"`
	Title      string      `json:"title"`
	File       string      `json:"file,omitempty"`
	Excerpt    string      `json:"excerpt,omitempty"`
	IsPartOf   string      `json:"is_part_of,omitempty"`
	ImageTitle string      `json:"image_title,omitempty"`
	Langs      []string    `json:"langs,omitempty"`
}

// NavigationEntry is one level of the breadcrumb tree.
type NavigationEntry struct {
	Header   SearchResult   `json:"header"`
	Children []SearchResult `json:"children"`
}
