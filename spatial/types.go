// Copyright 2025 The RevGeo Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"
	"math"
)

// earthRadius is the WGS84 equatorial radius, in meters.
const earthRadius = 6378137.0

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	return a.HaversineDistance(&b)
}

// Distance normalizes both points through the sexagesimal codec and returns
// the distance between them in meters.
func Distance(fromLng, fromLat, toLng, toLat string) (float64, error) {
	from, err := ParsePoint(fromLng, fromLat)
	if err != nil {
		return 0, err
	}

	to, err := ParsePoint(toLng, toLat)
	if err != nil {
		return 0, err
	}

	return DistanceMeters(from, to), nil
}

// ParsePoint builds a Point from a longitude/latitude pair in either the
// sexagesimal or the decimal representation.
func ParsePoint(longitude, latitude string) (Point, error) {
	lng, err := ParseCoordinate(longitude)
	if err != nil {
		return Point{}, err
	}

	lat, err := ParseCoordinate(latitude)
	if err != nil {
		return Point{}, err
	}

	return Point{Lat: lat, Lng: lng}, nil
}
