package provider

import (
	"context"
	"sync"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// Static reports a fixed location at the configured update cadence.
type Static struct {
	*Permissions

	platform domain.Platform
	coords   domain.Coords
	now      func() time.Time

	mu      sync.Mutex
	cfg     domain.PlatformConfig
	last    domain.Position
	hasLast bool
}

// NewStatic creates a provider that always returns the same location.
func NewStatic(platform domain.Platform, lat, lng float64, perms *Permissions) *Static {
	return &Static{
		Permissions: perms,
		platform:    platform,
		coords:      domain.Coords{Latitude: lat, Longitude: lng},
		now:         time.Now,
		cfg:         domain.DefaultConfig(platform),
	}
}

func (s *Static) Platform() domain.Platform { return s.platform }

func (s *Static) Configure(cfg domain.PlatformConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *Static) LastKnownPosition(ctx context.Context) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// StartUpdates emits one fix immediately and then one per update interval.
func (s *Static) StartUpdates(ctx context.Context, req ports.UpdateRequest) (<-chan ports.LocationEvent, error) {
	if pe := s.denied(); pe != nil {
		return nil, pe
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if passive(cfg, req.HighAccuracy) {
		// nothing else drives a fixed location, so a passive request never hears anything
		out := make(chan ports.LocationEvent)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	out := make(chan ports.LocationEvent, 1)
	interval := updateInterval(cfg)
	accuracy := requestAccuracy(cfg, req.HighAccuracy)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case out <- ports.LocationEvent{Position: s.fix(accuracy)}:
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

func (s *Static) fix(accuracy float64) domain.Position {
	c := s.coords
	c.Accuracy = accuracy
	p := domain.Position{Coords: c, Timestamp: s.now().UnixMilli()}

	s.mu.Lock()
	s.last, s.hasLast = p, true
	s.mu.Unlock()
	return p
}
