package ports

import (
	"context"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// SuccessFunc receives a position.
type SuccessFunc func(domain.Position)

// ErrorFunc receives an acquisition failure.
type ErrorFunc func(*domain.PositionError)

// Geolocation is the facade consumed by the transports.
type Geolocation interface {
	Platform() domain.Platform
	SetConfiguration(cfg domain.PlatformConfig) error
	Configuration() domain.PlatformConfig

	AuthorizationStatus() domain.AuthorizationStatus
	RequestAuthorization()

	GetCurrentPosition(success SuccessFunc, failure ErrorFunc, opts *domain.RequestOptions)
	CurrentPosition(ctx context.Context, opts *domain.RequestOptions) (domain.Position, error)

	WatchPosition(success SuccessFunc, failure ErrorFunc, opts *domain.WatchOptions) domain.WatchID
	ClearWatch(id domain.WatchID) error
	ActiveWatches() []domain.WatchID
	StopObserving()
}
