package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expectedKM             float64
		tolerance              float64
	}{
		{
			name: "same point is zero",
			lat1: 44.2312, lon1: -76.4860,
			lat2: 44.2312, lon2: -76.4860,
			expectedKM: 0, tolerance: 1e-9,
		},
		{
			name: "downtown to nearby shelter",
			lat1: 44.2312, lon1: -76.4860,
			lat2: 44.2330, lon2: -76.4880,
			expectedKM: 0.256, tolerance: 0.01,
		},
		{
			name: "kingston to toronto",
			lat1: 44.2312, lon1: -76.4860,
			lat2: 43.6532, lon2: -79.3832,
			expectedKM: 242.0, tolerance: 2.0,
		},
		{
			name: "equator quarter turn",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 90,
			expectedKM: 10007.5, tolerance: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expectedKM, got, tt.tolerance)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{44.2312, -76.4860, 44.30, -76.40},
		{0, 0, 45, 45},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{89.9, 0, -89.9, 180},
	}
	for _, p := range pairs {
		forward := Haversine(p[0], p[1], p[2], p[3])
		reverse := Haversine(p[2], p[3], p[0], p[1])
		assert.InDelta(t, forward, reverse, 1e-9)
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	// Every point whose true distance is <= r must fall inside the box.
	origins := []struct {
		lat, lon, radius float64
	}{
		{44.2312, -76.4860, 3},
		{0, 0, 50},
		{60.0, 10.0, 25},
		{-45.0, 170.0, 10},
	}

	bearingsDeg := []float64{0, 45, 90, 135, 180, 225, 270, 315}

	for _, o := range origins {
		latMin, latMax, lonMin, lonMax := BoundingBox(o.lat, o.lon, o.radius)

		for _, b := range bearingsDeg {
			lat, lon := offset(o.lat, o.lon, o.radius*0.999, b)
			d := Haversine(o.lat, o.lon, lat, lon)
			if d > o.radius {
				continue
			}
			assert.GreaterOrEqual(t, lat, latMin)
			assert.LessOrEqual(t, lat, latMax)
			assert.GreaterOrEqual(t, lon, lonMin)
			assert.LessOrEqual(t, lon, lonMax)
		}
	}
}

func TestBoundingBoxOverIncludes(t *testing.T) {
	// Box corners may exceed the radius; that is expected of a prefilter.
	latMin, _, lonMin, _ := BoundingBox(44.2312, -76.4860, 3)
	corner := Haversine(44.2312, -76.4860, latMin, lonMin)
	assert.Greater(t, corner, 3.0)
}

func TestValidCoords(t *testing.T) {
	assert.True(t, ValidCoords(44.2312, -76.4860))
	assert.True(t, ValidCoords(-90, 180))
	assert.False(t, ValidCoords(90.1, 0))
	assert.False(t, ValidCoords(0, -180.5))
	assert.False(t, ValidCoords(math.NaN(), 0))
}

// offset moves approximately distKm from (lat, lon) along the given bearing
// using a flat-earth approximation, good enough at test radii.
func offset(lat, lon, distKm, bearingDeg float64) (float64, float64) {
	rad := bearingDeg * math.Pi / 180
	dLat := distKm * math.Cos(rad) / 111.0
	dLon := distKm * math.Sin(rad) / (111.0 * math.Cos(lat*math.Pi/180))
	return lat + dLat, lon + dLon
}
