package geo

import (
	"fmt"
	"math"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/uber/h3-go/v4"
)

const earthRadius = 6371e3 // meters

// SignificantChangeResolution is the H3 resolution whose cells (~460 m
// edge) approximate the platform "significant change" movement threshold.
const SignificantChangeResolution = 8

// Location represents a geographic coordinate.
type Location struct {
	Latitude  float64
	Longitude float64
}

// FromCoords drops everything but latitude and longitude.
func FromCoords(c domain.Coords) Location {
	return Location{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Offset moves l by meters along bearing (degrees from north).
func Offset(l Location, meters, bearing float64) Location {
	lat1 := l.Latitude * math.Pi / 180
	lng1 := l.Longitude * math.Pi / 180
	brng := bearing * math.Pi / 180
	d := meters / earthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	out := Location{
		Latitude:  lat2 * 180 / math.Pi,
		Longitude: lng2 * 180 / math.Pi,
	}
	// normalize to [-180, 180)
	out.Longitude = math.Mod(out.Longitude+540, 360) - 180
	return out
}

// Cell returns the H3 cell containing l at the given resolution.
func Cell(l Location, res int) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(l.Latitude, l.Longitude), res)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
	}
	return cell, nil
}
