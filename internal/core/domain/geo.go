package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Validate checks the coordinate ranges. NaN and infinities are rejected.
func (p GeoPoint) Validate() error {
	if !finite(p.Lat) || !finite(p.Lon) {
		return fmt.Errorf("%w: coordinates must be finite numbers", ErrInvalidInput)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidInput, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: lng %v out of range", ErrInvalidInput, p.Lon)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Orb converts to an orb point. Orb points are (lon, lat).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back to (lat, lon).
func FromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
}

// CoordinateLabel is the display name used when nothing better is known.
func (p GeoPoint) CoordinateLabel() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lon)
}
