package geospatial

import "github.com/paulmach/orb"

// PointInRing runs an even-odd ray cast with x = longitude, y = latitude.
// The ring is treated as closed whether or not the last vertex repeats the
// first.
//
// An edge with no vertical extent would divide by zero; its denominator is
// replaced by 1. Such an edge never straddles the scanline so the guard does
// not change the result, but it keeps the arithmetic finite. Points exactly on
// an edge are not classified consistently.
func PointInRing(x, y float64, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		dy := yj - yi
		if dy == 0 {
			dy = 1
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/dy+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInPolygon reports whether (x, y) lies in the outer ring and in none of
// the holes.
func PointInPolygon(x, y float64, poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	if !PointInRing(x, y, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if PointInRing(x, y, hole) {
			return false
		}
	}
	return true
}

// PointInMultiPolygon reports whether any member polygon contains (x, y).
func PointInMultiPolygon(x, y float64, mp orb.MultiPolygon) bool {
	for _, poly := range mp {
		if PointInPolygon(x, y, poly) {
			return true
		}
	}
	return false
}

// Contains dispatches on the geometry type. Anything other than a polygon or
// multipolygon contains nothing.
func Contains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return PointInPolygon(pt[0], pt[1], geom)
	case orb.MultiPolygon:
		return PointInMultiPolygon(pt[0], pt[1], geom)
	}
	return false
}
