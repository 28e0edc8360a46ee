// Package geo provides great-circle distance and bounding-box math for
// proximity queries.
package geo

import "math"

// EarthRadiusKM is the mean Earth radius used for all distance math.
const EarthRadiusKM = 6371.0

// kmPerDegree approximates the surface distance of one degree of latitude.
const kmPerDegree = 111.0

// poleEpsilon keeps the longitude span finite when cos(lat) approaches zero.
const poleEpsilon = 1e-9

// Haversine returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(a))
}

// BoundingBox returns a rectangular lat/lon range that fully contains the
// circle of radiusKm around (lat, lon). The box over-includes near its
// corners; callers must apply Haversine as the authoritative filter.
func BoundingBox(lat, lon, radiusKm float64) (latMin, latMax, lonMin, lonMax float64) {
	dLat := radiusKm / kmPerDegree
	dLon := radiusKm / (kmPerDegree*math.Cos(lat*math.Pi/180) + poleEpsilon)
	return lat - dLat, lat + dLat, lon - dLon, lon + dLon
}

// ValidCoords reports whether lat/lon form a usable coordinate pair.
func ValidCoords(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
