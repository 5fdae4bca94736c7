package gpx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
)

const (
	creator        = "travel-guide"
	colorExtension = "color"
)

// Write serializes f as GPX 1.1 into path, creating parent directories.
// The waypoint link is stored in the point comment since GPX points carry no
// link element; the waypoint color goes to a color extension.
func Write(path string, f *File) error {
	if f == nil {
		f = &File{}
	}
	doc := toGPX(f)
	data, err := doc.ToXml(gpxgo.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("make gpx dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write gpx: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename gpx: %w", err)
	}
	return nil
}

// Read parses a GPX file written by Write.
func Read(path string) (*File, error) {
	doc, err := gpxgo.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return fromGPX(doc), nil
}

func toGPX(f *File) *gpxgo.GPX {
	doc := &gpxgo.GPX{
		Version:     "1.1",
		Creator:     creator,
		Name:        f.Title,
		Description: f.Description,
		Link:        f.Link,
	}
	if f.Lang != "" {
		doc.Keywords = "lang:" + f.Lang
	}
	for _, w := range f.Waypoints {
		p := gpxgo.GPXPoint{
			Point:       gpxgo.Point{Latitude: w.Point.Lat, Longitude: w.Point.Lon},
			Name:        w.Name,
			Description: w.Description,
			Comment:     w.Link,
			Symbol:      w.Icon,
			Type:        w.Category,
		}
		if w.Color != 0 {
			p.Extensions.GetOrCreateNode(gpxgo.NoNamespace, colorExtension).Data = formatColor(w.Color)
		}
		doc.Waypoints = append(doc.Waypoints, p)
	}
	for _, t := range f.Tracks {
		var track gpxgo.GPXTrack
		for _, s := range t.Segments {
			var seg gpxgo.GPXTrackSegment
			for _, p := range s.Points {
				seg.Points = append(seg.Points, gpxgo.GPXPoint{
					Point: gpxgo.Point{Latitude: p.Lat, Longitude: p.Lon},
				})
			}
			track.Segments = append(track.Segments, seg)
		}
		doc.Tracks = append(doc.Tracks, track)
	}
	return doc
}

func fromGPX(doc *gpxgo.GPX) *File {
	f := &File{
		Title:       doc.Name,
		Description: doc.Description,
		Link:        doc.Link,
		Lang:        strings.TrimPrefix(doc.Keywords, "lang:"),
	}
	for _, p := range doc.Waypoints {
		f.Waypoints = append(f.Waypoints, Waypoint{
			Name:        p.Name,
			Point:       geo.Point{Lat: p.Latitude, Lon: p.Longitude},
			Description: p.Description,
			Link:        p.Comment,
			Icon:        p.Symbol,
			Category:    p.Type,
			Color:       waypointColor(p.Extensions),
		})
	}
	for _, t := range doc.Tracks {
		var track Track
		for _, s := range t.Segments {
			seg := Segment{Points: make([]geo.Point, 0, len(s.Points))}
			for _, p := range s.Points {
				seg.Points = append(seg.Points, geo.Point{Lat: p.Latitude, Lon: p.Longitude})
			}
			track.Segments = append(track.Segments, seg)
		}
		f.Tracks = append(f.Tracks, track)
	}
	return f
}

// formatColor renders an ARGB color as #AARRGGBB.
func formatColor(c uint32) string {
	return fmt.Sprintf("#%08X", c)
}

// waypointColor reads the color extension of a waypoint. Six digit values
// are opaque. Missing or malformed values yield zero.
func waypointColor(ext gpxgo.Extension) uint32 {
	node, ok := ext.GetNode(gpxgo.AnyNamespace, colorExtension)
	if !ok {
		return 0
	}
	raw := strings.TrimPrefix(strings.TrimSpace(node.Data), "#")
	if len(raw) != 6 && len(raw) != 8 {
		return 0
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0
	}
	if len(raw) == 6 {
		v |= 0xff000000
	}
	return uint32(v)
}

// Prune removes exported track files in dir older than maxAge and returns how many were deleted.
func Prune(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read gpx dir: %w", err)
	}
	cutoff := now.Add(-maxAge)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return deleted, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		deleted++
	}
	return deleted, nil
}
