// Package yamlbook serves travel records from YAML travel books.
package yamlbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/source"
)

type bookFile struct {
	File    string         `yaml:"file"`
	Records []recordFile   `yaml:"records"`
	Objects []mapObjectDef `yaml:"objects"`
}

type recordFile struct {
	Subtype string            `yaml:"subtype"`
	Name    string            `yaml:"name"`
	Names   map[string]string `yaml:"names"`
	Lat     float64           `yaml:"lat"`
	Lon     float64           `yaml:"lon"`
	Tags    map[string]string `yaml:"tags"`
}

type mapObjectDef struct {
	MinZoom int               `yaml:"min_zoom"`
	Tags    map[string]string `yaml:"tags"`
	Points  [][2]float64      `yaml:"points"`
}

// Book is an in-memory travel index loaded from a YAML document.
// It is read-only after construction.
type Book struct {
	file    string
	records []*Record
	objects []*MapObject
}

// Open reads and parses a travel book from path.
func Open(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read travel book: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if b.file == "" {
		b.file = filepath.Base(path)
	}
	return b, nil
}

// Parse decodes a travel book document.
func Parse(data []byte) (*Book, error) {
	var doc bookFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode travel book: %w", err)
	}

	b := &Book{file: doc.File}
	for i, rf := range doc.Records {
		if rf.Subtype == "" {
			return nil, fmt.Errorf("record %d: subtype is required", i)
		}
		b.records = append(b.records, newRecord(rf))
	}
	for i, of := range doc.Objects {
		if len(of.Points) == 0 {
			return nil, fmt.Errorf("object %d: points are required", i)
		}
		b.objects = append(b.objects, newMapObject(of))
	}
	return b, nil
}

// File implements source.Source.
func (b *Book) File() string { return b.file }

// SearchArea implements source.Source. Record detail levels are not stored in
// books so q.DetailLevel does not narrow the result.
func (b *Book) SearchArea(ctx context.Context, q source.AreaQuery, visit source.Visitor[source.Record]) error {
	for _, r := range b.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.Filter.Accept(r.subtype) {
			continue
		}
		if geo.Distance(q.Center, r.loc) > q.RadiusMeters {
			continue
		}
		if !visit(r) {
			return nil
		}
	}
	return nil
}

// SearchName implements source.Source. A record matches when any word of any
// of its names starts with the prefix, ignoring case. An empty prefix matches all.
func (b *Book) SearchName(ctx context.Context, q source.NameQuery, visit source.Visitor[source.Record]) error {
	prefix := strings.ToLower(strings.TrimSpace(q.Prefix))
	for _, r := range b.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.Filter.Accept(r.subtype) {
			continue
		}
		if q.BBox != nil && !q.BBox.Contains(r.loc) {
			continue
		}
		if prefix != "" && !r.hasWordPrefix(prefix) {
			continue
		}
		if !visit(r) {
			return nil
		}
	}
	return nil
}

// SearchGeometry implements source.Source.
func (b *Book) SearchGeometry(ctx context.Context, q source.GeometryQuery, visit source.Visitor[source.MapObject]) error {
	for _, o := range b.objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.DetailLevel >= 0 && o.minZoom > q.DetailLevel {
			continue
		}
		if q.BBox != nil && !o.intersects(*q.BBox) {
			continue
		}
		if !visit(o) {
			return nil
		}
	}
	return nil
}

// Record is a travel record held by a Book.
type Record struct {
	subtype string
	name    string
	names   map[string]string
	loc     geo.Point
	tags    map[string]string
	keys    []string
}

func newRecord(rf recordFile) *Record {
	r := &Record{
		subtype: rf.Subtype,
		name:    rf.Name,
		names:   rf.Names,
		loc:     geo.Point{Lat: rf.Lat, Lon: rf.Lon},
		tags:    rf.Tags,
	}
	if r.names == nil {
		r.names = map[string]string{}
	}
	if r.tags == nil {
		r.tags = map[string]string{}
	}
	r.keys = make([]string, 0, len(r.tags))
	for k := range r.tags {
		r.keys = append(r.keys, k)
	}
	sort.Strings(r.keys)
	return r
}

// Name implements source.Record.
func (r *Record) Name(lang string) string {
	if lang == "" {
		return r.name
	}
	if n, ok := r.names[lang]; ok && n != "" {
		return n
	}
	return ""
}

// AllNames implements source.Record.
func (r *Record) AllNames() []string {
	langs := make([]string, 0, len(r.names))
	for l := range r.names {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, r.names[l])
	}
	return out
}

// Location implements source.Record.
func (r *Record) Location() geo.Point { return r.loc }

// Tag implements source.Record.
func (r *Record) Tag(key string) string { return r.tags[key] }

// LangTag implements source.Record.
func (r *Record) LangTag(key, lang string) string {
	if lang == "" {
		return r.tags[key]
	}
	return r.tags[key+":"+lang]
}

// InfoKeys implements source.Record.
func (r *Record) InfoKeys() []string {
	return append([]string(nil), r.keys...)
}

// TagSuffix implements source.Record.
func (r *Record) TagSuffix(prefix string) (string, bool) {
	for _, k := range r.keys {
		if strings.HasPrefix(k, prefix) {
			return k[len(prefix):], true
		}
	}
	return "", false
}

// SubType implements source.Record.
func (r *Record) SubType() string { return r.subtype }

func (r *Record) hasWordPrefix(prefix string) bool {
	if wordPrefix(r.name, prefix) {
		return true
	}
	for _, n := range r.names {
		if wordPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func wordPrefix(name, prefix string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, prefix) {
		return true
	}
	for _, w := range strings.Fields(lower) {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

// MapObject is a line geometry held by a Book.
type MapObject struct {
	minZoom int
	tags    map[string]string
	xs, ys  []uint32
	bounds  geo.Rect
}

func newMapObject(of mapObjectDef) *MapObject {
	o := &MapObject{minZoom: of.MinZoom, tags: of.Tags}
	if o.tags == nil {
		o.tags = map[string]string{}
	}
	o.bounds = geo.Rect{Left: 180, Top: -90, Right: -180, Bottom: 90}
	for _, p := range of.Points {
		lat, lon := p[0], p[1]
		o.xs = append(o.xs, geo.Tile31FromLon(lon))
		o.ys = append(o.ys, geo.Tile31FromLat(lat))
		o.bounds.Left = min(o.bounds.Left, lon)
		o.bounds.Right = max(o.bounds.Right, lon)
		o.bounds.Top = max(o.bounds.Top, lat)
		o.bounds.Bottom = min(o.bounds.Bottom, lat)
	}
	return o
}

// PointCount implements source.MapObject.
func (o *MapObject) PointCount() int { return len(o.xs) }

// Point31 implements source.MapObject.
func (o *MapObject) Point31(i int) (x, y uint32) { return o.xs[i], o.ys[i] }

// TagValue implements source.MapObject.
func (o *MapObject) TagValue(tag string) string { return o.tags[tag] }

func (o *MapObject) intersects(r geo.Rect) bool {
	return o.bounds.Left <= r.Right && o.bounds.Right >= r.Left &&
		o.bounds.Bottom <= r.Top && o.bounds.Top >= r.Bottom
}
