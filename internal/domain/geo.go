package domain

import (
	"fmt"
	"math"
)

const (
	earthRadiusKm = 6371.0

	// SpinRadiusKm is the maximum distance from which a pokestop can be spun.
	SpinRadiusKm = 0.038
	// TutorialSpinRadiusKm is the slightly wider radius used for the level-up spin.
	TutorialSpinRadiusKm = 0.04
)

type Coords struct {
	Lat float64
	Lng float64
}

func (c Coords) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// EquirectDistance approximates the distance in km between two points with an
// equirectangular projection. Accurate enough for the short hops between scan
// locations and much cheaper than haversine.
func EquirectDistance(a, b Coords) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	lng1 := toRadians(a.Lng)
	lng2 := toRadians(b.Lng)

	x := (lng2 - lng1) * math.Cos(0.5*(lat2+lat1))
	y := lat2 - lat1

	return earthRadiusKm * math.Sqrt(x*x+y*y)
}

// HaversineDistance returns the great-circle distance in km.
func HaversineDistance(a, b Coords) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func InRadius(point, center Coords, radiusKm float64) bool {
	return EquirectDistance(point, center) <= radiusKm
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
