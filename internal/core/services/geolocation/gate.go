package geolocation

import (
	"github.com/uber/h3-go/v4"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/geo"
)

const (
	filteredDistance          = "distance"
	filteredSignificantChange = "significant_change"
)

// gate decides which raw updates of a watch reach the caller. It compares
// against the last reported fix, not the last raw one. Not safe for
// concurrent use; each watch goroutine owns its gate.
type gate struct {
	distanceFilter float64
	significant    bool

	reported bool
	last     geo.Location
	lastCell h3.Cell
}

func newGate(opts domain.ResolvedWatch) *gate {
	return &gate{
		distanceFilter: opts.DistanceFilter,
		significant:    opts.UseSignificantChanges,
	}
}

// admit reports whether p should be delivered, and otherwise why not.
func (g *gate) admit(p domain.Position) (bool, string) {
	loc := geo.FromCoords(p.Coords)

	var cell h3.Cell
	if g.significant {
		c, err := geo.Cell(loc, geo.SignificantChangeResolution)
		if err == nil {
			cell = c
		}
	}

	if !g.reported {
		g.accept(loc, cell)
		return true, ""
	}

	if g.significant && cell != 0 {
		if cell == g.lastCell {
			return false, filteredSignificantChange
		}
		g.accept(loc, cell)
		return true, ""
	}

	if geo.Distance(g.last, loc) < g.distanceFilter {
		return false, filteredDistance
	}
	g.accept(loc, cell)
	return true, ""
}

func (g *gate) accept(loc geo.Location, cell h3.Cell) {
	g.reported = true
	g.last = loc
	g.lastCell = cell
}
