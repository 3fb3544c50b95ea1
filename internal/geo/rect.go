package geo

import "math"

// Point is a latitude/longitude coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Rect is an axis-aligned bounding box with normalized bounds
// (LatMin <= LatMax, LngMin <= LngMax).
type Rect struct {
	LatMin float64
	LatMax float64
	LngMin float64
	LngMax float64
}

// BoundingBox builds a Rect from two opposing corners. Which two corners,
// and in which order, doesn't matter: bounds are taken componentwise.
func BoundingBox(p1, p2 Point) Rect {
	return Rect{
		LatMin: math.Min(p1.Lat, p2.Lat),
		LatMax: math.Max(p1.Lat, p2.Lat),
		LngMin: math.Min(p1.Lng, p2.Lng),
		LngMax: math.Max(p1.Lng, p2.Lng),
	}
}

// Contains reports whether p lies strictly inside the rectangle.
// Points on the boundary are outside (open rectangle on all four sides).
func (r Rect) Contains(p Point) bool {
	return r.LatMin < p.Lat && p.Lat < r.LatMax &&
		r.LngMin < p.Lng && p.Lng < r.LngMax
}
