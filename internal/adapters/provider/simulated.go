package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/geo"
	"github.com/lcalzada-xor/geoloc/internal/mock"
)

const subscriberBuffer = 16

type subscriber struct {
	ch       chan ports.LocationEvent
	req      ports.UpdateRequest
	passive  bool
	accuracy float64
	lastSent time.Time
}

// Simulated is a platform location service driven by a random-walk track.
// Fixes are only generated while at least one non-passive request is
// active; passive requests receive the fixes generated for others.
type Simulated struct {
	*Permissions

	platform domain.Platform
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	cfg     domain.PlatformConfig
	track   *mock.TrackGenerator
	subs    map[*subscriber]struct{}
	running bool
	outage  bool
	last    domain.Position
	hasLast bool
	lastGen time.Time
}

// NewSimulated creates a simulator starting at start and moving according
// to profile ("still", "walking", "cycling", "driving").
func NewSimulated(platform domain.Platform, start geo.Location, profile string, perms *Permissions) *Simulated {
	return &Simulated{
		Permissions: perms,
		platform:    platform,
		now:         time.Now,
		logger:      slog.Default().With("component", "simulated_provider"),
		cfg:         domain.DefaultConfig(platform),
		track:       mock.NewTrackGenerator(start, profile, 0),
		subs:        make(map[*subscriber]struct{}),
	}
}

func (s *Simulated) Platform() domain.Platform { return s.platform }

func (s *Simulated) Configure(cfg domain.PlatformConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	for sub := range s.subs {
		sub.passive = passive(cfg, sub.req.HighAccuracy)
		sub.accuracy = requestAccuracy(cfg, sub.req.HighAccuracy)
	}
	return nil
}

// SetOutage makes every generated fix fail with PositionUnavailable, as when
// no provider can obtain a fix.
func (s *Simulated) SetOutage(outage bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outage = outage
}

func (s *Simulated) LastKnownPosition(ctx context.Context) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *Simulated) StartUpdates(ctx context.Context, req ports.UpdateRequest) (<-chan ports.LocationEvent, error) {
	if pe := s.denied(); pe != nil {
		return nil, pe
	}

	s.mu.Lock()
	sub := &subscriber{
		ch:       make(chan ports.LocationEvent, subscriberBuffer),
		req:      req,
		passive:  passive(s.cfg, req.HighAccuracy),
		accuracy: requestAccuracy(s.cfg, req.HighAccuracy),
	}
	s.subs[sub] = struct{}{}
	if !sub.passive {
		// an active request gets a first fix right away instead of waiting a full interval
		s.generateLocked(sub)
		if !s.running {
			s.running = true
			go s.loop()
		}
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}

func (s *Simulated) loop() {
	s.mu.Lock()
	interval := updateInterval(s.cfg)
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		if !s.hasActiveLocked() {
			s.running = false
			s.mu.Unlock()
			return
		}
		if next := updateInterval(s.cfg); next != interval {
			interval = next
			ticker.Reset(interval)
		}
		s.generateLocked(nil)
		s.mu.Unlock()
	}
}

func (s *Simulated) hasActiveLocked() bool {
	for sub := range s.subs {
		if !sub.passive {
			return true
		}
	}
	return false
}

// generateLocked produces one fix and fans it out. With only set, the fix
// goes to that subscriber alone.
func (s *Simulated) generateLocked(only *subscriber) {
	now := s.now()

	if s.outage {
		ev := ports.LocationEvent{Err: domain.NewPositionError(domain.PositionUnavailable, "no location provider available")}
		s.fanOutLocked(ev, only, now)
		return
	}

	accuracy := wifiAccuracy * 1000
	for sub := range s.subs {
		if !sub.passive && sub.accuracy < accuracy {
			accuracy = sub.accuracy
		}
	}
	if only != nil {
		accuracy = only.accuracy
	}

	elapsed := now.Sub(s.lastGen)
	if s.lastGen.IsZero() {
		elapsed = 0
	}
	s.lastGen = now

	pos := domain.Position{Coords: s.track.Next(elapsed, accuracy), Timestamp: now.UnixMilli()}
	s.last, s.hasLast = pos, true
	s.fanOutLocked(ports.LocationEvent{Position: pos}, only, now)
}

func (s *Simulated) fanOutLocked(ev ports.LocationEvent, only *subscriber, now time.Time) {
	fastest := fastestInterval(s.cfg)
	for sub := range s.subs {
		if only != nil && sub != only {
			continue
		}
		if fastest > 0 && !sub.lastSent.IsZero() && now.Sub(sub.lastSent) < fastest {
			continue
		}
		select {
		case sub.ch <- ev:
			sub.lastSent = now
		default:
			s.logger.Debug("Subscriber buffer full, dropping fix")
		}
	}
}
