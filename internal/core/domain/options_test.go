package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestOptions_ResolveDefaults(t *testing.T) {
	var nilOpts *RequestOptions
	r, err := nilOpts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Forever, r.Timeout)
	assert.Equal(t, Forever, r.MaximumAge)
	assert.False(t, r.Bounded())
	assert.True(t, r.AcceptsCached(365*24*time.Hour))

	r, err = (&RequestOptions{}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, Forever, r.Timeout)
}

func TestRequestOptions_Resolve(t *testing.T) {
	r, err := (&RequestOptions{
		Timeout:            Millis(5000),
		MaximumAge:         Duration(0),
		EnableHighAccuracy: true,
	}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, r.Timeout)
	assert.True(t, r.Bounded())
	assert.True(t, r.EnableHighAccuracy)
	assert.False(t, r.AcceptsCached(0))
	assert.False(t, r.AcceptsCached(time.Millisecond), "maximumAge 0 forces a fresh fix")
}

func TestRequestOptions_RejectsNegative(t *testing.T) {
	_, err := (&RequestOptions{Timeout: Millis(-1)}).Resolve()
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	_, err = (&RequestOptions{MaximumAge: Millis(-1)}).Resolve()
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	_, err = (&WatchOptions{DistanceFilter: Float(-5)}).Resolve()
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestWatchOptions_Resolve(t *testing.T) {
	var nilOpts *WatchOptions
	w, err := nilOpts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultDistanceFilter, w.DistanceFilter)
	assert.Equal(t, Forever, w.Timeout)

	w, err = (&WatchOptions{
		RequestOptions:        RequestOptions{Timeout: Millis(250)},
		DistanceFilter:        Float(0),
		UseSignificantChanges: true,
	}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 0.0, w.DistanceFilter)
	assert.Equal(t, 250*time.Millisecond, w.Timeout)
	assert.True(t, w.UseSignificantChanges)
}

func TestMillis_Saturates(t *testing.T) {
	assert.Equal(t, Forever, *Millis(math.MaxInt64))
	assert.Equal(t, Forever, *Millis(10_000_000_000_000))
	assert.Equal(t, 9_000_000_000_000*time.Millisecond, *Millis(9_000_000_000_000))

	_, err := (&RequestOptions{Timeout: Millis(math.MinInt64)}).Resolve()
	assert.ErrorIs(t, err, ErrInvalidOptions)

	r, err := OptionsDocument{Timeout: ptr(int64(math.MaxInt64))}.Request().Resolve()
	require.NoError(t, err)
	assert.False(t, r.Bounded())
}

func ptr[T any](v T) *T { return &v }
