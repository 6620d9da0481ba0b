package mock

import (
	"math"
	"math/rand"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/geo"
)

// Movement profiles for realistic mock tracks, speeds in m/s
var profiles = map[string]float64{
	"still":   0,
	"walking": 1.4,
	"cycling": 5.5,
	"driving": 13.9,
}

// TrackGenerator produces a random-walk track around a starting point.
type TrackGenerator struct {
	rand     *rand.Rand
	truth    geo.Location
	heading  float64 // degrees
	speed    float64 // m/s
	altitude float64 // meters
}

// NewTrackGenerator creates a generator starting at start. A profile not in
// the table falls back to walking.
func NewTrackGenerator(start geo.Location, profile string, seed int64) *TrackGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	speed, ok := profiles[profile]
	if !ok {
		speed = profiles["walking"]
	}
	r := rand.New(rand.NewSource(seed))
	return &TrackGenerator{
		rand:     r,
		truth:    start,
		heading:  r.Float64() * 360,
		speed:    speed,
		altitude: 650,
	}
}

// Truth returns the noise-free current location.
func (g *TrackGenerator) Truth() geo.Location {
	return g.truth
}

// Next advances the walk by elapsed and returns an observed fix whose error
// is consistent with accuracy (meters).
func (g *TrackGenerator) Next(elapsed time.Duration, accuracy float64) domain.Coords {
	if g.speed > 0 {
		// Drift heading gradually so the track curves instead of zig-zagging
		g.heading = math.Mod(g.heading+g.rand.NormFloat64()*15+360, 360)
		g.truth = geo.Offset(g.truth, g.speed*elapsed.Seconds(), g.heading)
	}
	g.altitude += g.rand.NormFloat64() * 0.5

	// Observation noise: ~68% of fixes fall within the reported accuracy
	noise := math.Abs(g.rand.NormFloat64()) * accuracy / 2
	observed := geo.Offset(g.truth, noise, g.rand.Float64()*360)

	c := domain.Coords{
		Latitude:  observed.Latitude,
		Longitude: observed.Longitude,
		Accuracy:  accuracy,
	}
	// Only satellite-grade fixes carry altitude and motion
	if accuracy <= 20 {
		c.Altitude = domain.Float(g.altitude)
		c.AltitudeAccuracy = domain.Float(accuracy * 1.5)
		c.Heading = domain.Float(g.heading)
		c.Speed = domain.Float(g.speed)
	}
	return c
}
