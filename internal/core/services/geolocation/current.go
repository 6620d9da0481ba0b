package geolocation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/telemetry"
)

// GetCurrentPosition requests one position without blocking. Exactly one of
// success or failure is invoked, once, on the executor. A nil failure drops
// the error. Callbacks are suppressed if StopObserving runs first.
func (s *Service) GetCurrentPosition(success SuccessFunc, failure ErrorFunc, opts *domain.RequestOptions) {
	ctx, epoch := s.observing()

	go func() {
		pos, err := s.CurrentPosition(ctx, opts)
		s.exec.Execute(func() {
			if s.epoch.Load() != epoch {
				return
			}
			if err != nil {
				if failure == nil {
					s.logger.Debug("Dropped position error without callback", "error", err)
					return
				}
				failure(domain.AsPositionError(err))
				return
			}
			if success != nil {
				success(pos)
			}
		})
	}()
}

// CurrentPosition acquires one position, blocking until a fix, a failure,
// the configured timeout, or cancellation of ctx. Failures are
// *domain.PositionError except for invalid options and caller cancellation.
func (s *Service) CurrentPosition(ctx context.Context, opts *domain.RequestOptions) (domain.Position, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "geolocation.CurrentPosition")
	defer span.End()

	pos, source, err := s.currentPosition(ctx, opts)
	if err != nil {
		var pe *domain.PositionError
		if errors.As(err, &pe) {
			telemetry.PositionErrors.WithLabelValues(string(domain.SourceCurrent), pe.Code.String()).Inc()
			span.SetAttributes(attribute.Int("geoloc.error_code", int(pe.Code)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Position{}, err
	}

	span.SetAttributes(
		attribute.String("geoloc.source", source),
		attribute.Float64("geoloc.accuracy", pos.Coords.Accuracy),
	)
	telemetry.FixesDelivered.WithLabelValues(string(domain.SourceCurrent)).Inc()
	s.record(pos, domain.SourceCurrent, 0)
	return pos, nil
}

func (s *Service) currentPosition(ctx context.Context, opts *domain.RequestOptions) (domain.Position, string, error) {
	req, err := opts.Resolve()
	if err != nil {
		return domain.Position{}, "", err
	}

	if err := s.authorize(ctx); err != nil {
		return domain.Position{}, "", err
	}

	if pos, cache, ok := s.fromCache(ctx, req); ok {
		telemetry.CacheHits.WithLabelValues(cache).Inc()
		return pos, cache, nil
	}

	// The timeout covers acquisition only, not the permission prompt.
	if req.Bounded() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	pos, err := s.acquire(ctx, req)
	if err != nil {
		return domain.Position{}, "", err
	}
	s.remember(pos)
	return pos, "platform", nil
}

// fromCache returns a cached fix young enough for req: the facade cache
// first, then the platform's last known position.
func (s *Service) fromCache(ctx context.Context, req domain.ResolvedRequest) (domain.Position, string, bool) {
	now := s.now()
	if pos, ok := s.cached(); ok && req.AcceptsCached(pos.Age(now)) {
		return pos, "facade", true
	}
	pos, ok := s.platform.LastKnownPosition(ctx)
	if !ok || pos.Validate() != nil || !req.AcceptsCached(pos.Age(now)) {
		return domain.Position{}, "", false
	}
	s.remember(pos)
	return pos, "platform", true
}

// acquire waits for the first valid fix from a fresh platform request.
func (s *Service) acquire(ctx context.Context, req domain.ResolvedRequest) (domain.Position, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.platform.StartUpdates(ctx, ports.UpdateRequest{HighAccuracy: req.EnableHighAccuracy})
	if err != nil {
		return domain.Position{}, domain.AsPositionError(err)
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.Position{}, domain.NewPositionError(domain.Timeout, "")
			}
			return domain.Position{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					events = nil
					continue
				}
				return domain.Position{}, domain.NewPositionError(domain.PositionUnavailable, "platform ended the request without a fix")
			}
			if ev.Err != nil {
				return domain.Position{}, ev.Err
			}
			if err := ev.Position.Validate(); err != nil {
				s.logger.Debug("Discarded invalid fix", "error", err)
				continue
			}
			return ev.Position, nil
		}
	}
}
