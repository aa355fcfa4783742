package geospatial

import "github.com/paulmach/orb"

// PolygonCentroid is the unweighted mean of the outer ring's vertices. It is a
// ranking proxy, not an area centroid. A closing vertex that repeats the first
// one is counted like any other.
func PolygonCentroid(poly orb.Polygon) (orb.Point, bool) {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return orb.Point{}, false
	}
	var sx, sy float64
	for _, p := range poly[0] {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(poly[0]))
	return orb.Point{sx / n, sy / n}, true
}

// GeometryCentroid returns the ranking centroid of an area geometry. A
// multipolygon uses its first member only.
func GeometryCentroid(g orb.Geometry) (orb.Point, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		return PolygonCentroid(geom)
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return orb.Point{}, false
		}
		return PolygonCentroid(geom[0])
	}
	return orb.Point{}, false
}
