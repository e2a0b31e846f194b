// Package geo contains great-circle helpers used by the dispatch engine.
package geo

import (
	"math"

	"github.com/kilianp07/courier-dispatch/core/model"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometres. NaN inputs yield NaN.
func DistanceKm(a, b model.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// rounding can push h just past 1 near antipodes
	if h > 1 {
		h = 1
	} else if h < 0 {
		h = 0
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// UnitVector maps p onto the unit sphere. Euclidean distance between two
// unit vectors (the chord) grows monotonically with great-circle distance.
func UnitVector(p model.GeoPoint) [3]float64 {
	lat := toRadians(p.Lat)
	lng := toRadians(p.Lng)
	cosLat := math.Cos(lat)
	return [3]float64{cosLat * math.Cos(lng), cosLat * math.Sin(lng), math.Sin(lat)}
}

// ChordForDistanceKm converts a great-circle distance into the matching
// chord length on the unit sphere. Distances beyond half the circumference
// map to the diameter.
func ChordForDistanceKm(km float64) float64 {
	if km <= 0 {
		return 0
	}
	angle := km / EarthRadiusKm
	if angle >= math.Pi {
		return 2
	}
	return 2 * math.Sin(angle/2)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
