package utils

import (
	"math"
)

const earthRadiusKm = 6371

// Point represents a geographical point
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox represents a rectangular area
type BoundingBox struct {
	NorthEast Point `json:"northEast"`
	SouthWest Point `json:"southWest"`
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// HaversineDistance returns the great-circle distance between two points in
// kilometers.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	dlat := toRadians(lat2 - lat1)
	dlng := toRadians(lng2 - lng1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dlng/2)*math.Sin(dlng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func IsWithinRadius(center, p Point, radiusKm float64) bool {
	return HaversineDistance(center.Lat, center.Lng, p.Lat, p.Lng) <= radiusKm
}

// GetBoundingBox returns the box enclosing a circle of radiusKm around center.
// It is used as a cheap prefilter before the exact radius check.
func GetBoundingBox(center Point, radiusKm float64) BoundingBox {
	latDelta := radiusKm / earthRadiusKm * 180 / math.Pi
	lngDelta := latDelta / math.Cos(toRadians(center.Lat))

	return BoundingBox{
		NorthEast: Point{Lat: center.Lat + latDelta, Lng: center.Lng + lngDelta},
		SouthWest: Point{Lat: center.Lat - latDelta, Lng: center.Lng - lngDelta},
	}
}

func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.SouthWest.Lat &&
		p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng &&
		p.Lng <= b.NorthEast.Lng
}
