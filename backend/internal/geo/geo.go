package geo

import "math"

const (
	// earthRadiusMeters matches the radius used when the travel indexes were built.
	earthRadiusMeters = 6372800.0

	tileSize31 = 1 << 31
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Rect is a lat/lon bounding box. Top is the northern edge.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rect) Contains(p Point) bool {
	return p.Lon >= r.Left && p.Lon <= r.Right && p.Lat <= r.Top && p.Lat >= r.Bottom
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Top <= r.Bottom
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BBoxAround returns the rectangle that encloses a circle of radiusMeters around center.
func BBoxAround(center Point, radiusMeters float64) Rect {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	cos := math.Cos(toRadians(center.Lat))
	dLon := 180.0
	if cos > 1e-9 {
		dLon = math.Min(180, dLat/cos)
	}
	return Rect{
		Left:   math.Max(-180, center.Lon-dLon),
		Right:  math.Min(180, center.Lon+dLon),
		Top:    math.Min(90, center.Lat+dLat),
		Bottom: math.Max(-90, center.Lat-dLat),
	}
}

// LonFromTile31 converts a 31-bit tile X coordinate to longitude.
func LonFromTile31(x uint32) float64 {
	lon := float64(x)/tileSize31*360 - 180
	return clamp(lon, -180, 180)
}

// LatFromTile31 converts a 31-bit tile Y coordinate to latitude.
func LatFromTile31(y uint32) float64 {
	n := math.Pi - 2*math.Pi*float64(y)/tileSize31
	return math.Atan(math.Sinh(n)) * 180 / math.Pi
}

// Tile31FromLon converts longitude to a 31-bit tile X coordinate.
func Tile31FromLon(lon float64) uint32 {
	lon = clamp(lon, -180, 180)
	v := (lon + 180) / 360 * tileSize31
	return uint32(math.Min(v, tileSize31-1))
}

// Tile31FromLat converts latitude to a 31-bit tile Y coordinate.
func Tile31FromLat(lat float64) uint32 {
	lat = clamp(lat, -85.0511, 85.0511)
	rad := toRadians(lat)
	v := (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * tileSize31
	return uint32(clamp(v, 0, tileSize31-1))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
