package provider

import (
	"context"
	"sync"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

type feedSub struct {
	ctx context.Context
	ch  chan ports.LocationEvent
	req ports.UpdateRequest
}

// Feed is a location service whose fixes are pushed by the caller, either
// from tests or from an external GPS bridge posting to the daemon.
type Feed struct {
	*Permissions

	platform domain.Platform

	mu       sync.Mutex
	cfg      domain.PlatformConfig
	subs     map[*feedSub]struct{}
	requests []ports.UpdateRequest
	last     domain.Position
	hasLast  bool
}

func NewFeed(platform domain.Platform, perms *Permissions) *Feed {
	return &Feed{
		Permissions: perms,
		platform:    platform,
		cfg:         domain.DefaultConfig(platform),
		subs:        make(map[*feedSub]struct{}),
	}
}

func (f *Feed) Platform() domain.Platform { return f.platform }

func (f *Feed) Configure(cfg domain.PlatformConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

// Config returns the configuration last applied to the feed.
func (f *Feed) Config() domain.PlatformConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Feed) LastKnownPosition(ctx context.Context) (domain.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.hasLast
}

// SetLastKnown seeds the platform cache without notifying subscribers.
func (f *Feed) SetLastKnown(pos domain.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last, f.hasLast = pos, true
}

func (f *Feed) StartUpdates(ctx context.Context, req ports.UpdateRequest) (<-chan ports.LocationEvent, error) {
	if pe := f.denied(); pe != nil {
		return nil, pe
	}

	sub := &feedSub{ctx: ctx, ch: make(chan ports.LocationEvent), req: req}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, sub)
		close(sub.ch)
		f.mu.Unlock()
	}()
	return sub.ch, nil
}

// Push delivers pos to every active subscriber and records it as the last
// known position. It blocks until each subscriber took the fix or went away.
func (f *Feed) Push(pos domain.Position) {
	f.mu.Lock()
	f.last, f.hasLast = pos, true
	f.mu.Unlock()
	f.broadcast(ports.LocationEvent{Position: pos})
}

// Fail delivers a platform error to every active subscriber.
func (f *Feed) Fail(pe *domain.PositionError) {
	f.broadcast(ports.LocationEvent{Err: pe})
}

func (f *Feed) broadcast(ev ports.LocationEvent) {
	f.mu.Lock()
	subs := make([]*feedSub, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		f.send(sub, ev)
	}
}

func (f *Feed) send(sub *feedSub, ev ports.LocationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; !ok {
		return
	}
	select {
	case sub.ch <- ev:
	case <-sub.ctx.Done():
	}
}

// Subscribers is the number of update requests currently open.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Requests returns every update request received so far.
func (f *Feed) Requests() []ports.UpdateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.UpdateRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
