package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/geo"
)

func recv(t *testing.T, ch <-chan ports.LocationEvent) ports.LocationEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ports.LocationEvent{}
}

func TestPermissions_PromptOnlyWhenUndetermined(t *testing.T) {
	p := NewPermissions(domain.NotDetermined, domain.AuthorizedWhenInUse)

	status, err := p.RequestAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AuthorizedWhenInUse, status)

	status, err = p.RequestAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AuthorizedWhenInUse, status)
	assert.Equal(t, 1, p.Prompts())
}

func TestPermissions_PromptCancelled(t *testing.T) {
	p := NewPermissions(domain.NotDetermined, domain.AuthorizedAlways).WithDelay(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := p.RequestAuthorization(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.NotDetermined, status)
	assert.Equal(t, domain.NotDetermined, p.AuthorizationStatus())
}

func TestPassiveOnlyForAndroidNoPower(t *testing.T) {
	noPower := domain.AndroidConfig{LowAccuracyMode: domain.NoPower, FastestInterval: time.Second, UpdateInterval: time.Second}
	assert.True(t, passive(noPower, false))
	assert.False(t, passive(noPower, true))
	assert.False(t, passive(domain.IOSConfig{}, false))
	assert.Equal(t, 10000.0, requestAccuracy(domain.AndroidConfig{LowAccuracyMode: domain.LowPower}, false))
	assert.Equal(t, gpsAccuracy, requestAccuracy(domain.IOSConfig{}, true))
}

func TestStatic_EmitsImmediately(t *testing.T) {
	s := NewStatic(domain.PlatformIOS, 40.4168, -3.7038, Granted())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, ok := s.LastKnownPosition(ctx)
	assert.False(t, ok)

	ch, err := s.StartUpdates(ctx, ports.UpdateRequest{HighAccuracy: true})
	require.NoError(t, err)

	ev := recv(t, ch)
	require.Nil(t, ev.Err)
	assert.Equal(t, 40.4168, ev.Position.Coords.Latitude)
	assert.Equal(t, gpsAccuracy, ev.Position.Coords.Accuracy)
	require.NoError(t, ev.Position.Validate())

	last, ok := s.LastKnownPosition(ctx)
	assert.True(t, ok)
	assert.Equal(t, ev.Position, last)
}

func TestStatic_DeniedRefusesUpdates(t *testing.T) {
	s := NewStatic(domain.PlatformAndroid, 0, 0, NewPermissions(domain.Denied, domain.Denied))
	_, err := s.StartUpdates(context.Background(), ports.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestStatic_ClosesOnCancel(t *testing.T) {
	s := NewStatic(domain.PlatformAndroid, 1, 1, Granted())
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.StartUpdates(ctx, ports.UpdateRequest{})
	require.NoError(t, err)
	recv(t, ch)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSimulated_PassiveHearsOthers(t *testing.T) {
	s := NewSimulated(domain.PlatformAndroid, geo.Location{Latitude: 48.8566, Longitude: 2.3522}, "walking", Granted())
	require.NoError(t, s.Configure(domain.AndroidConfig{
		LowAccuracyMode: domain.NoPower,
		FastestInterval: time.Millisecond,
		UpdateInterval:  20 * time.Millisecond,
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiet, err := s.StartUpdates(ctx, ports.UpdateRequest{})
	require.NoError(t, err)

	select {
	case <-quiet:
		t.Fatal("passive request produced a fix on its own")
	case <-time.After(80 * time.Millisecond):
	}

	active, err := s.StartUpdates(ctx, ports.UpdateRequest{HighAccuracy: true})
	require.NoError(t, err)
	first := recv(t, active)
	require.Nil(t, first.Err)
	assert.Equal(t, gpsAccuracy, first.Position.Coords.Accuracy)

	ev := recv(t, quiet)
	require.Nil(t, ev.Err)
	require.NoError(t, ev.Position.Validate())
}

func TestSimulated_Outage(t *testing.T) {
	s := NewSimulated(domain.PlatformIOS, geo.Location{Latitude: 1, Longitude: 1}, "still", Granted())
	s.SetOutage(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.StartUpdates(ctx, ports.UpdateRequest{})
	require.NoError(t, err)
	ev := recv(t, ch)
	require.NotNil(t, ev.Err)
	assert.Equal(t, domain.PositionUnavailable, ev.Err.Code)
}

func TestFeed_PushReachesSubscribers(t *testing.T) {
	f := NewFeed(domain.PlatformAndroid, Granted())
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.StartUpdates(ctx, ports.UpdateRequest{HighAccuracy: true, DistanceFilter: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Subscribers())

	pos := domain.Position{Coords: domain.Coords{Latitude: 10, Longitude: 20, Accuracy: 3}, Timestamp: 1000}
	go f.Push(pos)
	ev := recv(t, ch)
	assert.Equal(t, pos, ev.Position)

	go f.Fail(domain.NewPositionError(domain.PositionUnavailable, "gps off"))
	ev = recv(t, ch)
	require.NotNil(t, ev.Err)
	assert.Equal(t, "gps off", ev.Err.Message)

	cancel()
	assert.Eventually(t, func() bool { return f.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	last, ok := f.LastKnownPosition(context.Background())
	assert.True(t, ok)
	assert.Equal(t, pos, last)
	assert.Equal(t, []ports.UpdateRequest{{HighAccuracy: true, DistanceFilter: 10}}, f.Requests())
}

func TestFeed_PushWithoutSubscribers(t *testing.T) {
	f := NewFeed(domain.PlatformIOS, Granted())
	pos := domain.Position{Coords: domain.Coords{Latitude: 1, Longitude: 2, Accuracy: 5}, Timestamp: 1}
	f.Push(pos)

	last, ok := f.LastKnownPosition(context.Background())
	assert.True(t, ok)
	assert.Equal(t, pos, last)
}
