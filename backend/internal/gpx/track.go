// Package gpx holds the in-memory track file produced for travel articles and
// persists it in GPX format.
package gpx

import (
	"strings"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
)

// Extension is appended to every exported track file name.
const Extension = ".gpx"

// Waypoint is a named point of a travel article.
type Waypoint struct {
	Name        string    `json:"name"`
	Point       geo.Point `json:"point"`
	Description string    `json:"description,omitempty"`
	Link        string    `json:"link,omitempty"`
	// Color is ARGB; zero means unset.
	Color    uint32 `json:"color,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Category string `json:"category,omitempty"`
}

// Segment is a contiguous run of track points.
type Segment struct {
	Points []geo.Point `json:"points"`
}

// Track is an ordered list of segments.
type Track struct {
	Segments []Segment `json:"segments"`
}

// File is the track file value handed to the writer.
type File struct {
	Title       string     `json:"title"`
	Lang        string     `json:"lang,omitempty"`
	Description string     `json:"description,omitempty"`
	Link        string     `json:"link,omitempty"`
	Tracks      []Track    `json:"tracks,omitempty"`
	Waypoints   []Waypoint `json:"waypoints,omitempty"`
}

// AddWaypoint appends a waypoint.
func (f *File) AddWaypoint(w Waypoint) {
	f.Waypoints = append(f.Waypoints, w)
}

// PointCount returns the number of track points across all tracks.
func (f *File) PointCount() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, t := range f.Tracks {
		for _, s := range t.Segments {
			n += len(s.Points)
		}
	}
	return n
}

var unsafeNameChars = strings.NewReplacer("/", "_", "'", "_", "\"", "_")

// FileName derives the exported file name from an article title.
func FileName(title string) string {
	return unsafeNameChars.Replace(title) + Extension
}
