package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
)

// Coords is the coordinate record of a single fix.
// Optional values are nil when the platform did not report them.
type Coords struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Altitude         *float64 `json:"altitude"`
	Accuracy         float64  `json:"accuracy"`         // meters, horizontal
	AltitudeAccuracy *float64 `json:"altitudeAccuracy"` // meters
	Heading          *float64 `json:"heading"`          // degrees from true north
	Speed            *float64 `json:"speed"`            // meters per second
}

// Position is an immutable snapshot of one successful location acquisition.
type Position struct {
	Coords    Coords `json:"coords"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// NewPosition builds a validated position captured at the given time.
func NewPosition(coords Coords, at time.Time) (Position, error) {
	p := Position{Coords: coords, Timestamp: at.UnixMilli()}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Time returns the capture time.
func (p Position) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Age returns how old the fix is relative to now. Fixes stamped in the
// future report a zero age.
func (p Position) Age(now time.Time) time.Duration {
	age := now.Sub(p.Time())
	if age < 0 {
		return 0
	}
	return age
}

// IsZero reports whether p is the zero value.
func (p Position) IsZero() bool {
	return p.Timestamp == 0 && p.Coords.Latitude == 0 && p.Coords.Longitude == 0
}

// Validate checks coordinate ranges and that accuracy values are non-negative.
func (p Position) Validate() error {
	c := p.Coords
	if !finite(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPosition, c.Latitude)
	}
	if !finite(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPosition, c.Longitude)
	}
	if !finite(c.Accuracy) || c.Accuracy < 0 {
		return fmt.Errorf("%w: negative accuracy", ErrInvalidPosition)
	}
	if c.AltitudeAccuracy != nil && (!finite(*c.AltitudeAccuracy) || *c.AltitudeAccuracy < 0) {
		return fmt.Errorf("%w: negative altitude accuracy", ErrInvalidPosition)
	}
	if c.Altitude != nil && !finite(*c.Altitude) {
		return fmt.Errorf("%w: altitude not finite", ErrInvalidPosition)
	}
	if c.Heading != nil && (!finite(*c.Heading) || *c.Heading < 0 || *c.Heading >= 360) {
		return fmt.Errorf("%w: heading %v out of range", ErrInvalidPosition, *c.Heading)
	}
	if c.Speed != nil && (!finite(*c.Speed) || *c.Speed < 0) {
		return fmt.Errorf("%w: negative speed", ErrInvalidPosition)
	}
	if p.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidPosition)
	}
	return nil
}

// Float returns a pointer to v, for filling optional coordinate fields.
func Float(v float64) *float64 {
	return &v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
