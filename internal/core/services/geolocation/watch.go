package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/telemetry"
)

type watch struct {
	id      domain.WatchID
	success SuccessFunc
	failure ErrorFunc
	opts    domain.ResolvedWatch
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func (w *watch) stop() {
	w.stopped.Store(true)
	w.cancel()
}

// watchArena hands out watch handles from reusable slots. A slot's
// generation is bumped on removal so stale handles never match a new watch.
type watchArena struct {
	slots []watchSlot
	free  []uint32
	count int
}

type watchSlot struct {
	generation uint32
	w          *watch
}

func (a *watchArena) insert(w *watch) domain.WatchID {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, watchSlot{})
	}
	a.slots[slot].w = w
	a.count++
	return domain.NewWatchID(slot, a.slots[slot].generation)
}

func (a *watchArena) lookup(id domain.WatchID) (*watch, bool) {
	slot, ok := id.Slot()
	if !ok || int(slot) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[slot]
	if s.w == nil || s.generation != id.Generation() {
		return nil, false
	}
	return s.w, true
}

func (a *watchArena) remove(id domain.WatchID) (*watch, bool) {
	w, ok := a.lookup(id)
	if !ok {
		return nil, false
	}
	slot, _ := id.Slot()
	a.slots[slot].w = nil
	a.slots[slot].generation++
	a.free = append(a.free, slot)
	a.count--
	return w, true
}

// drain removes and returns every active watch.
func (a *watchArena) drain() []*watch {
	var out []*watch
	for i := range a.slots {
		if w := a.slots[i].w; w != nil {
			out = append(out, w)
			a.slots[i].w = nil
			a.slots[i].generation++
			a.free = append(a.free, uint32(i))
		}
	}
	a.count = 0
	return out
}

func (a *watchArena) ids() []domain.WatchID {
	ids := make([]domain.WatchID, 0, a.count)
	for i, s := range a.slots {
		if s.w != nil {
			ids = append(ids, domain.NewWatchID(uint32(i), s.generation))
		}
	}
	return ids
}

// WatchPosition registers a watch and returns its handle without waiting for
// a first fix. success runs once per update that passes the distance or
// significant-change gate; failure runs on errors, which do not end the
// watch unless permission is denied.
func (s *Service) WatchPosition(success SuccessFunc, failure ErrorFunc, opts *domain.WatchOptions) domain.WatchID {
	resolved, optErr := opts.Resolve()

	s.mu.Lock()
	ctx, cancel := context.WithCancel(s.observeCtx)
	w := &watch{
		success: success,
		failure: failure,
		opts:    resolved,
		cancel:  cancel,
	}
	w.id = s.watches.insert(w)
	s.mu.Unlock()

	telemetry.ActiveWatches.Inc()
	s.logger.Debug("Watch registered", "watch_id", w.id.String(), "distance_filter", resolved.DistanceFilter, "significant_changes", resolved.UseSignificantChanges)

	if optErr != nil {
		s.deliverError(w, domain.NewPositionError(domain.PositionUnavailable, optErr.Error()))
		return w.id
	}

	go s.runWatch(ctx, w)
	return w.id
}

// ClearWatch stops the watch identified by id. Unknown or already cleared
// handles return ErrUnknownWatch and leave every other watch untouched.
func (s *Service) ClearWatch(id domain.WatchID) error {
	s.mu.Lock()
	w, ok := s.watches.remove(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownWatch, id)
	}

	w.stop()
	telemetry.ActiveWatches.Dec()
	s.logger.Debug("Watch cleared", "watch_id", id.String())
	return nil
}

// StopObserving stops every watch and in-flight request. Once it returns no
// previously supplied callback is started again.
func (s *Service) StopObserving() {
	s.mu.Lock()
	stopped := s.watches.drain()
	s.epoch.Add(1)
	s.stopAll()
	s.observeCtx, s.stopAll = context.WithCancel(context.Background())
	s.mu.Unlock()

	for _, w := range stopped {
		w.stop()
	}
	telemetry.ActiveWatches.Sub(float64(len(stopped)))
	if len(stopped) > 0 {
		s.logger.Info("Stopped observing", "watches", len(stopped))
	}
}

// ActiveWatches lists the handles of all registered watches.
func (s *Service) ActiveWatches() []domain.WatchID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watches.ids()
}

// runWatch feeds platform events to w until the watch is cleared or the
// platform fails for good. In the latter case the watch is retired so it no
// longer shows up as active.
func (s *Service) runWatch(ctx context.Context, w *watch) {
	if !s.watchLoop(ctx, w) && ctx.Err() == nil {
		s.retire(w)
	}
}

// watchLoop returns false when the watch ended on a terminal platform error.
func (s *Service) watchLoop(ctx context.Context, w *watch) bool {
	if err := s.authorize(ctx); err != nil {
		if ctx.Err() == nil {
			s.deliverError(w, domain.AsPositionError(err))
		}
		return false
	}

	g := newGate(w.opts)

	if pos, ok := s.cached(); ok && w.opts.AcceptsCached(pos.Age(s.now())) {
		if admitted, _ := g.admit(pos); admitted {
			telemetry.CacheHits.WithLabelValues("facade").Inc()
			s.deliverPosition(w, pos)
		}
	}

	events, err := s.platform.StartUpdates(ctx, ports.UpdateRequest{
		HighAccuracy:       w.opts.EnableHighAccuracy,
		SignificantChanges: w.opts.UseSignificantChanges,
		DistanceFilter:     w.opts.DistanceFilter,
	})
	if err != nil {
		s.deliverError(w, domain.AsPositionError(err))
		return false
	}

	// The timer is disarmed after a TIMEOUT and re-armed by the next raw
	// event, so a silent platform yields one error per quiet period.
	var timeout <-chan time.Time
	var timer *time.Timer
	if w.opts.Bounded() {
		timer = time.NewTimer(w.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case <-timeout:
			timeout = nil
			s.deliverError(w, domain.NewPositionError(domain.Timeout, ""))
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					s.deliverError(w, domain.NewPositionError(domain.PositionUnavailable, "platform stopped delivering updates"))
				}
				return false
			}
			if timer != nil {
				timer.Reset(w.opts.Timeout)
				timeout = timer.C
			}
			if ev.Err != nil {
				s.deliverError(w, ev.Err)
				if errors.Is(ev.Err, domain.ErrPermissionDenied) {
					return false
				}
				continue
			}
			if err := ev.Position.Validate(); err != nil {
				s.logger.Debug("Discarded invalid fix", "watch_id", w.id.String(), "error", err)
				continue
			}
			s.remember(ev.Position)
			if admitted, reason := g.admit(ev.Position); !admitted {
				telemetry.UpdatesFiltered.WithLabelValues(reason).Inc()
				continue
			}
			s.deliverPosition(w, ev.Position)
		}
	}
}

// retire drops a watch whose loop ended on its own. Errors already queued
// for it are still delivered.
func (s *Service) retire(w *watch) {
	s.mu.Lock()
	_, ok := s.watches.remove(w.id)
	s.mu.Unlock()
	if !ok {
		return
	}
	w.cancel()
	telemetry.ActiveWatches.Dec()
	s.logger.Debug("Watch ended", "watch_id", w.id.String())
}

func (s *Service) deliverPosition(w *watch, pos domain.Position) {
	telemetry.FixesDelivered.WithLabelValues(string(domain.SourceWatch)).Inc()
	s.record(pos, domain.SourceWatch, w.id)
	s.exec.Execute(func() {
		if w.stopped.Load() || w.success == nil {
			return
		}
		w.success(pos)
	})
}

func (s *Service) deliverError(w *watch, pe *domain.PositionError) {
	telemetry.PositionErrors.WithLabelValues(string(domain.SourceWatch), pe.Code.String()).Inc()
	s.exec.Execute(func() {
		if w.stopped.Load() {
			return
		}
		if w.failure == nil {
			s.logger.Debug("Dropped watch error without callback", "watch_id", w.id.String(), "error", pe)
			return
		}
		w.failure(pe)
	})
}
