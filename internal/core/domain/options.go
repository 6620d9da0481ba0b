package domain

import (
	"fmt"
	"math"
	"time"
)

// Forever is the unbounded duration used for absent timeouts and cache ages.
const Forever = time.Duration(math.MaxInt64)

// DefaultDistanceFilter is the watch distance threshold in meters when none is given.
const DefaultDistanceFilter = 100.0

// RequestOptions configures a single acquisition. Nil fields take defaults:
// Timeout and MaximumAge are unbounded. A MaximumAge of zero forces a fresh fix.
type RequestOptions struct {
	Timeout            *time.Duration
	MaximumAge         *time.Duration
	EnableHighAccuracy bool
}

// WatchOptions configures a watch registration for its whole lifetime.
type WatchOptions struct {
	RequestOptions
	DistanceFilter        *float64 // meters
	UseSignificantChanges bool
}

// ResolvedRequest holds normalized options with every default applied.
type ResolvedRequest struct {
	Timeout            time.Duration
	MaximumAge         time.Duration
	EnableHighAccuracy bool
}

// Bounded reports whether the request carries a finite timeout.
func (r ResolvedRequest) Bounded() bool {
	return r.Timeout != Forever
}

// AcceptsCached reports whether a fix of the given age satisfies the request.
func (r ResolvedRequest) AcceptsCached(age time.Duration) bool {
	switch r.MaximumAge {
	case Forever:
		return true
	case 0:
		return false
	}
	return age <= r.MaximumAge
}

// ResolvedWatch holds normalized watch options.
type ResolvedWatch struct {
	ResolvedRequest
	DistanceFilter        float64
	UseSignificantChanges bool
}

// Resolve applies defaults and rejects negative values. A nil receiver
// resolves to all defaults.
func (o *RequestOptions) Resolve() (ResolvedRequest, error) {
	r := ResolvedRequest{Timeout: Forever, MaximumAge: Forever}
	if o == nil {
		return r, nil
	}
	r.EnableHighAccuracy = o.EnableHighAccuracy
	if o.Timeout != nil {
		if *o.Timeout < 0 {
			return ResolvedRequest{}, fmt.Errorf("%w: negative timeout", ErrInvalidOptions)
		}
		r.Timeout = *o.Timeout
	}
	if o.MaximumAge != nil {
		if *o.MaximumAge < 0 {
			return ResolvedRequest{}, fmt.Errorf("%w: negative maximumAge", ErrInvalidOptions)
		}
		r.MaximumAge = *o.MaximumAge
	}
	return r, nil
}

// Resolve applies defaults for the watch-specific fields as well.
func (o *WatchOptions) Resolve() (ResolvedWatch, error) {
	if o == nil {
		return ResolvedWatch{
			ResolvedRequest: ResolvedRequest{Timeout: Forever, MaximumAge: Forever},
			DistanceFilter:  DefaultDistanceFilter,
		}, nil
	}
	req, err := o.RequestOptions.Resolve()
	if err != nil {
		return ResolvedWatch{}, err
	}
	w := ResolvedWatch{
		ResolvedRequest:       req,
		DistanceFilter:        DefaultDistanceFilter,
		UseSignificantChanges: o.UseSignificantChanges,
	}
	if o.DistanceFilter != nil {
		d := *o.DistanceFilter
		if math.IsNaN(d) || d < 0 {
			return ResolvedWatch{}, fmt.Errorf("%w: distanceFilter must be >= 0", ErrInvalidOptions)
		}
		w.DistanceFilter = d
	}
	return w, nil
}

// Duration returns a pointer to d, for filling option fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = int64(Forever / time.Millisecond)

// Millis converts a millisecond count into an option duration. Counts too
// large for a Duration mean Forever; too negative ones stay negative so
// validation still rejects them.
func Millis(ms int64) *time.Duration {
	switch {
	case ms > maxMillis:
		return Duration(Forever)
	case ms < -maxMillis:
		return Duration(-time.Millisecond)
	}
	return Duration(time.Duration(ms) * time.Millisecond)
}
