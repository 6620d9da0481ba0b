package geolocation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

type (
	SuccessFunc = ports.SuccessFunc
	ErrorFunc   = ports.ErrorFunc
)

// Option customizes a Service.
type Option func(*Service)

// WithRecorder sends every delivered fix to rec.
func WithRecorder(rec ports.FixRecorder) Option {
	return func(s *Service) { s.recorder = rec }
}

// WithStore seeds the position cache from the last persisted fix.
func WithStore(store ports.PositionStore) Option {
	return func(s *Service) { s.store = store }
}

// WithExecutor delivers callbacks through exec instead of the built-in
// serial dispatcher.
func WithExecutor(exec Executor) Option {
	return func(s *Service) { s.exec = exec }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the geolocation facade. It holds the process-wide platform
// configuration and routes platform events to caller callbacks.
type Service struct {
	platform ports.LocationService
	recorder ports.FixRecorder
	store    ports.PositionStore
	exec     Executor
	serial   *serialExecutor
	now      func() time.Time
	logger   *slog.Logger

	// epoch is bumped by StopObserving; single-shot callbacks captured under
	// an older epoch are never invoked.
	epoch atomic.Uint64

	mu         sync.RWMutex
	config     domain.PlatformConfig
	cache      domain.Position
	hasCache   bool
	observeCtx context.Context
	stopAll    context.CancelFunc
	watches    watchArena
}

// NewService creates the facade over a platform location service.
func NewService(platform ports.LocationService, opts ...Option) *Service {
	s := &Service{
		platform: platform,
		now:      time.Now,
		logger:   slog.Default().With("component", "geolocation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.serial = newSerialExecutor(s.logger)
		s.exec = s.serial
	}
	s.observeCtx, s.stopAll = context.WithCancel(context.Background())

	s.config = domain.DefaultConfig(platform.Platform())
	if err := platform.Configure(s.config); err != nil {
		s.logger.Warn("Platform rejected default configuration", "error", err)
	}

	if s.store != nil {
		s.seedCache()
	}
	return s
}

func (s *Service) seedCache() {
	rec, err := s.store.LastFix(context.Background())
	if err != nil {
		s.logger.Warn("Could not load last known fix", "error", err)
		return
	}
	if rec != nil && rec.Position.Validate() == nil {
		s.remember(rec.Position)
		s.logger.Debug("Seeded position cache", "timestamp", rec.Position.Timestamp)
	}
}

// Close stops every watch and the built-in dispatcher.
func (s *Service) Close() {
	s.StopObserving()
	if s.serial != nil {
		s.serial.Close()
	}
}

// SetConfiguration replaces the process-wide platform configuration used by
// all subsequent requests. A configuration for another platform is rejected
// with ErrPlatformMismatch and leaves the current one in place.
func (s *Service) SetConfiguration(cfg domain.PlatformConfig) error {
	norm, err := domain.NormalizeConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
	}
	if running := s.platform.Platform(); norm.Platform() != running {
		return fmt.Errorf("%w: got %s, running %s", domain.ErrPlatformMismatch, norm.Platform(), running)
	}
	if err := s.platform.Configure(norm); err != nil {
		return fmt.Errorf("platform configure: %w", err)
	}

	s.mu.Lock()
	s.config = norm
	s.mu.Unlock()

	s.logger.Info("Configuration updated", "platform", norm.Platform(), "config", fmt.Sprintf("%+v", norm))
	return nil
}

// Configuration returns the configuration currently in effect.
func (s *Service) Configuration() domain.PlatformConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Platform reports the running platform.
func (s *Service) Platform() domain.Platform {
	return s.platform.Platform()
}

// AuthorizationStatus reports the current platform permission state.
func (s *Service) AuthorizationStatus() domain.AuthorizationStatus {
	return s.platform.AuthorizationStatus()
}

// RequestAuthorization starts the platform permission negotiation and
// returns immediately. The outcome shows up in later requests.
func (s *Service) RequestAuthorization() {
	go func() {
		status, err := s.platform.RequestAuthorization(context.Background())
		if err != nil {
			s.logger.Warn("Authorization request failed", "error", err)
			return
		}
		s.logger.Info("Authorization negotiated", "status", status.String())
	}()
}

// authorize gates every acquisition on the permission state, prompting once
// when undetermined unless prompts are disabled by configuration.
func (s *Service) authorize(ctx context.Context) error {
	status := s.platform.AuthorizationStatus()
	if status.Granted() {
		return nil
	}
	if status == domain.Denied || status == domain.Restricted {
		return domain.NewPositionError(domain.PermissionDenied, "location permission "+status.String())
	}
	if s.skipPrompts() {
		return domain.NewPositionError(domain.PermissionDenied, "location permission not determined and permission requests are skipped")
	}

	status, err := s.platform.RequestAuthorization(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewPositionError(domain.PermissionDenied, err.Error())
	}
	if !status.Granted() {
		return domain.NewPositionError(domain.PermissionDenied, "location permission "+status.String())
	}
	return nil
}

func (s *Service) skipPrompts() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.config.(domain.IOSConfig)
	return ok && cfg.SkipPermissionRequests
}

// remember keeps the newest fix seen from any request.
func (s *Service) remember(p domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCache || p.Timestamp >= s.cache.Timestamp {
		s.cache = p
		s.hasCache = true
	}
}

func (s *Service) cached() (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache, s.hasCache
}

// observing returns the current observing context and its epoch.
func (s *Service) observing() (context.Context, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observeCtx, s.epoch.Load()
}

var _ ports.Geolocation = (*Service)(nil)

func (s *Service) record(p domain.Position, source domain.FixSource, id domain.WatchID) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(domain.FixRecord{
		ID:         uuid.NewString(),
		Position:   p,
		Source:     source,
		WatchID:    id,
		RecordedAt: s.now(),
	})
}
