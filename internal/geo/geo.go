// Package geo provides shared geographic primitives for the tour engine.
package geo

import (
	"fmt"
	"math"
)

const (
	// earthRadiusMeters is the mean Earth radius used for great-circle math.
	earthRadiusMeters = 6371000.0

	// CoordPrecision is the number of decimal degrees coordinates are rounded
	// to before being used as cache keys (~1.1m at the equator).
	CoordPrecision = 5
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate is within the WGS84 range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Rounded returns the coordinate rounded to CoordPrecision decimal degrees.
// Near-duplicate coordinates collapse to the same rounded value, which is
// what distance-cache keys are built from.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{
		Lat: roundTo(c.Lat, CoordPrecision),
		Lon: roundTo(c.Lon, CoordPrecision),
	}
}

// Key returns a stable string form of the rounded coordinate.
func (c Coordinate) Key() string {
	r := c.Rounded()
	return fmt.Sprintf("%.5f,%.5f", r.Lat, r.Lon)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(a, b Coordinate) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
