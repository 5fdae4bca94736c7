package models

import (
	"time"

	"github.com/DeafMist/travel-guide/backend/internal/gpx"
)

// SavedArticle is a bookmarked article as stored in Elasticsearch.
type SavedArticle struct {
	ID               string      `json:"id"`
	Kind             string      `json:"kind"`
	File             string      `json:"file"`
	RouteID          string      `json:"route_id"`
	Lang             string      `json:"lang"`
	Title            string      `json:"title"`
	Content          string      `json:"content,omitempty"`
	ContentJSON      string      `json:"content_json,omitempty"`
	IsPartOf         string      `json:"is_part_of,omitempty"`
	AggregatedPartOf string      `json:"aggregated_part_of,omitempty"`
	IsParentOf       string      `json:"is_parent_of,omitempty"`
	ImageTitle       string      `json:"image_title,omitempty"`
	RouteSource      string      `json:"route_source,omitempty"`
	Lat              float64     `json:"lat"`
	Lon              float64     `json:"lon"`
	Route            *RouteStats `json:"route,omitempty"`
	Geometry         *gpx.File   `json:"geometry,omitempty"`
	SavedAt          time.Time   `json:"saved_at"`
}

// RouteStats mirrors the statistics of a route article.
type RouteStats struct {
	Distance      float64 `json:"distance"`
	ElevationGain float64 `json:"elevation_gain"`
	ElevationLoss float64 `json:"elevation_loss"`
	User          string  `json:"user,omitempty"`
}

// ArticleSummary is the API projection of an article.
type ArticleSummary struct {
	Kind     string      `json:"kind"`
	Title    string      `json:"title"`
	Lang     string      `json:"lang"`
	File     string      `json:"file"`
	RouteID  string      `json:"route_id,omitempty"`
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Excerpt  string      `json:"excerpt,omitempty"`
	IsPartOf string      `json:"is_part_of,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Distance float64     `json:"distance_m,omitempty"`
	Route    *RouteStats `json:"route,omitempty"`
}
