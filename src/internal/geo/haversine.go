package geo

import "math"

// EarthRadiusMeters is the mean spherical Earth radius used for all
// distance calculations. Clients computing distances on their side must
// use the same constant for interoperable values.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Valid reports whether both coordinates are well-formed finite numbers.
func (p Point) Valid() bool {
	return isFinite(p.Latitude) && isFinite(p.Longitude)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Coordinates is a client-supplied coordinate pair. The fields are pointers
// so a coordinate missing from the JSON payload stays detectable instead of
// decoding to zero, which is a real position off the West African coast.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Point returns the pair as a Point when both coordinates are present and
// well-formed.
func (c *Coordinates) Point() (Point, bool) {
	if c == nil || c.Latitude == nil || c.Longitude == nil {
		return Point{}, false
	}
	p := Point{Latitude: *c.Latitude, Longitude: *c.Longitude}
	if !p.Valid() {
		return Point{}, false
	}
	return p, true
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula on a spherical-Earth model.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
