package ports

import (
	"context"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// UpdateRequest describes the cadence and precision asked of the platform.
type UpdateRequest struct {
	HighAccuracy       bool
	SignificantChanges bool
	// DistanceFilter is a hint; the facade applies its own gating.
	DistanceFilter float64
}

// LocationEvent is one raw delivery from the platform: a fix or a failure.
type LocationEvent struct {
	Position domain.Position
	Err      *domain.PositionError
}

// LocationService is the native platform location stack. Implementations
// own sensor fusion, permission prompts and power policy.
type LocationService interface {
	Platform() domain.Platform
	// Configure applies process-wide platform tuning.
	Configure(cfg domain.PlatformConfig) error
	AuthorizationStatus() domain.AuthorizationStatus
	// RequestAuthorization runs the permission negotiation and returns the
	// resulting status.
	RequestAuthorization(ctx context.Context) (domain.AuthorizationStatus, error)
	// LastKnownPosition returns the platform-cached fix, if any.
	LastKnownPosition(ctx context.Context) (domain.Position, bool)
	// StartUpdates streams events until ctx is cancelled, then closes the channel.
	StartUpdates(ctx context.Context, req UpdateRequest) (<-chan LocationEvent, error)
}

// PositionStore persists delivered fixes.
type PositionStore interface {
	SaveFix(ctx context.Context, rec domain.FixRecord) error
	SaveFixesBatch(ctx context.Context, recs []domain.FixRecord) error
	LastFix(ctx context.Context) (*domain.FixRecord, error)
	History(ctx context.Context, filter domain.HistoryFilter) ([]domain.FixRecord, error)
	Close() error
}

// FixRecorder receives every fix the facade delivers to a caller.
type FixRecorder interface {
	Record(rec domain.FixRecord)
}
