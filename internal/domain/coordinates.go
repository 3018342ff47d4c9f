package domain

import (
	"math"
	"strconv"
)

// Immutable geographic coordinates in decimal degrees.
type Coordinates struct {
	Lat float64
	Lng float64
}

// IsZero reports whether either component is exactly zero.
// Upstream systems report unknown positions as 0,0.
func (c Coordinates) IsZero() bool { return c.Lat == 0 || c.Lng == 0 }

// Valid reports whether the coordinates are finite and inside the WGS84 range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// L1 returns the taxicab distance in degrees.
func (c Coordinates) L1(o Coordinates) float64 {
	return math.Abs(c.Lat-o.Lat) + math.Abs(c.Lng-o.Lng)
}

// Within reports whether o lies inside the closed circle of the given radius (degrees).
func (c Coordinates) Within(o Coordinates, radius float64) bool {
	dLat := c.Lat - o.Lat
	dLng := c.Lng - o.Lng
	return dLat*dLat+dLng*dLng <= radius*radius
}

// String formats the pair as "lat,lng" for external API compatibility.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}
