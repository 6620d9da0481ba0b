package geolocation

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/geoloc/internal/adapters/provider"
	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/geo"
	"github.com/lcalzada-xor/geoloc/internal/telemetry"
)

func init() {
	telemetry.InitMetrics()
}

var origin = geo.Location{Latitude: 40.4168, Longitude: -3.7038}

// sink collects callback invocations.
type sink struct {
	mu        sync.Mutex
	positions []domain.Position
	errors    []*domain.PositionError
}

func (s *sink) success(p domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, p)
}

func (s *sink) failure(e *domain.PositionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
}

func (s *sink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions), len(s.errors)
}

func (s *sink) snapshot() ([]domain.Position, []*domain.PositionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Position(nil), s.positions...), append([]*domain.PositionError(nil), s.errors...)
}

// fixAt builds a fresh fix meters north of origin.
func fixAt(meters float64) domain.Position {
	loc := geo.Offset(origin, meters, 0)
	return domain.Position{
		Coords:    domain.Coords{Latitude: loc.Latitude, Longitude: loc.Longitude, Accuracy: 5},
		Timestamp: time.Now().UnixMilli(),
	}
}

func newFeedService(t *testing.T, platform domain.Platform, perms *provider.Permissions) (*Service, *provider.Feed) {
	t.Helper()
	feed := provider.NewFeed(platform, perms)
	svc := NewService(feed)
	t.Cleanup(svc.Close)
	return svc, feed
}

func waitSubscribers(t *testing.T, feed *provider.Feed, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return feed.Subscribers() == n }, 2*time.Second, 5*time.Millisecond)
}

// flush waits until every callback queued so far has run.
func flush(t *testing.T, svc *Service) {
	t.Helper()
	done := make(chan struct{})
	svc.exec.Execute(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not drain")
	}
}

func TestGetCurrentPosition_ExactlyOnce(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	svc.GetCurrentPosition(got.success, got.failure, &domain.RequestOptions{Timeout: domain.Duration(5 * time.Second)})
	waitSubscribers(t, feed, 1)

	pos := fixAt(0)
	feed.Push(pos)
	waitSubscribers(t, feed, 0)
	flush(t, svc)

	positions, errs := got.snapshot()
	require.Len(t, positions, 1)
	assert.Empty(t, errs)
	assert.Equal(t, pos, positions[0])
}

func TestGetCurrentPosition_TimeoutExcludesPermissionPrompt(t *testing.T) {
	perms := provider.NewPermissions(domain.NotDetermined, domain.AuthorizedWhenInUse).WithDelay(150 * time.Millisecond)
	svc, feed := newFeedService(t, domain.PlatformAndroid, perms)
	var got sink

	svc.GetCurrentPosition(got.success, got.failure, &domain.RequestOptions{Timeout: domain.Duration(100 * time.Millisecond)})
	waitSubscribers(t, feed, 1)

	feed.Push(fixAt(0))
	waitSubscribers(t, feed, 0)
	flush(t, svc)

	positions, errs := got.snapshot()
	assert.Len(t, positions, 1)
	assert.Empty(t, errs)
	assert.Equal(t, 1, perms.Prompts())
}

func TestGetCurrentPosition_Timeout(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	svc.GetCurrentPosition(got.success, got.failure, &domain.RequestOptions{Timeout: domain.Duration(30 * time.Millisecond)})

	require.Eventually(t, func() bool { _, e := got.counts(); return e == 1 }, 2*time.Second, 5*time.Millisecond)
	positions, errs := got.snapshot()
	assert.Empty(t, positions)
	assert.Equal(t, domain.Timeout, errs[0].Code)
}

func TestGetCurrentPosition_ZeroTimeoutWithoutCache(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformIOS, provider.Granted())
	var got sink

	svc.GetCurrentPosition(got.success, got.failure, &domain.RequestOptions{Timeout: domain.Duration(0), MaximumAge: domain.Duration(0)})

	require.Eventually(t, func() bool { _, e := got.counts(); return e == 1 }, 2*time.Second, 5*time.Millisecond)
	_, errs := got.snapshot()
	assert.Equal(t, domain.Timeout, errs[0].Code)
}

func TestGetCurrentPosition_NilFailureIsDropped(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformAndroid, provider.NewPermissions(domain.Denied, domain.Denied))
	var got sink

	svc.GetCurrentPosition(got.success, nil, nil)
	time.Sleep(20 * time.Millisecond)
	flush(t, svc)

	n, _ := got.counts()
	assert.Zero(t, n)
}

func TestCurrentPosition_UsesCache(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	ctx := context.Background()

	done := make(chan domain.Position, 1)
	go func() {
		pos, err := svc.CurrentPosition(ctx, nil)
		assert.NoError(t, err)
		done <- pos
	}()
	waitSubscribers(t, feed, 1)
	first := fixAt(0)
	feed.Push(first)
	require.Equal(t, first, <-done)

	// any cached fix is acceptable by default, so no new platform request is made
	pos, err := svc.CurrentPosition(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, first, pos)
	assert.Len(t, feed.Requests(), 1)
	waitSubscribers(t, feed, 0)

	// maximumAge 0 forces a fresh fix
	go func() {
		pos, err := svc.CurrentPosition(ctx, &domain.RequestOptions{MaximumAge: domain.Duration(0)})
		assert.NoError(t, err)
		done <- pos
	}()
	waitSubscribers(t, feed, 1)
	second := fixAt(5)
	second.Timestamp = first.Timestamp + 1
	feed.Push(second)
	assert.Equal(t, second, <-done)
	assert.Len(t, feed.Requests(), 2)
}

func TestCurrentPosition_PlatformLastKnown(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformIOS, provider.Granted())
	last := fixAt(0)
	feed.SetLastKnown(last)

	pos, err := svc.CurrentPosition(context.Background(), &domain.RequestOptions{MaximumAge: domain.Duration(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, last, pos)
	assert.Empty(t, feed.Requests())
}

func TestCurrentPosition_InvalidOptions(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformIOS, provider.Granted())
	_, err := svc.CurrentPosition(context.Background(), &domain.RequestOptions{Timeout: domain.Duration(-time.Second)})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestCurrentPosition_PlatformError(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.CurrentPosition(context.Background(), nil)
		errCh <- err
	}()
	waitSubscribers(t, feed, 1)
	feed.Fail(domain.NewPositionError(domain.PositionUnavailable, "no provider"))

	err := <-errCh
	assert.ErrorIs(t, err, domain.ErrPositionUnavailable)
}

func TestSkipPermissionRequests(t *testing.T) {
	perms := provider.NewPermissions(domain.NotDetermined, domain.AuthorizedWhenInUse)
	svc, feed := newFeedService(t, domain.PlatformIOS, perms)
	require.NoError(t, svc.SetConfiguration(domain.IOSConfig{SkipPermissionRequests: true}))

	_, err := svc.CurrentPosition(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Zero(t, perms.Prompts())
	assert.Empty(t, feed.Requests())
}

func TestPromptsWhenUndetermined(t *testing.T) {
	perms := provider.NewPermissions(domain.NotDetermined, domain.AuthorizedWhenInUse)
	svc, feed := newFeedService(t, domain.PlatformIOS, perms)

	done := make(chan error, 1)
	go func() {
		_, err := svc.CurrentPosition(context.Background(), nil)
		done <- err
	}()
	waitSubscribers(t, feed, 1)
	feed.Push(fixAt(0))

	require.NoError(t, <-done)
	assert.Equal(t, 1, perms.Prompts())
	assert.Equal(t, domain.AuthorizedWhenInUse, svc.AuthorizationStatus())
}

func TestRequestAuthorization_ReturnsImmediately(t *testing.T) {
	perms := provider.NewPermissions(domain.NotDetermined, domain.AuthorizedAlways).WithDelay(50 * time.Millisecond)
	svc, _ := newFeedService(t, domain.PlatformIOS, perms)

	start := time.Now()
	svc.RequestAuthorization()
	assert.Less(t, time.Since(start), 40*time.Millisecond)
	assert.Eventually(t, func() bool { return svc.AuthorizationStatus() == domain.AuthorizedAlways }, 2*time.Second, 5*time.Millisecond)
}

func TestSetConfiguration(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())

	assert.Equal(t, domain.DefaultConfig(domain.PlatformAndroid), svc.Configuration())

	err := svc.SetConfiguration(domain.IOSConfig{SkipPermissionRequests: true})
	assert.ErrorIs(t, err, domain.ErrPlatformMismatch)
	assert.Equal(t, domain.DefaultConfig(domain.PlatformAndroid), svc.Configuration())

	err = svc.SetConfiguration(domain.AndroidConfig{LowAccuracyMode: 7})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	require.NoError(t, svc.SetConfiguration(&domain.AndroidConfig{LowAccuracyMode: domain.LowPower, UpdateInterval: time.Second}))
	want := domain.AndroidConfig{LowAccuracyMode: domain.LowPower, FastestInterval: domain.DefaultFastestInterval, UpdateInterval: time.Second}
	assert.Equal(t, want, svc.Configuration())
	assert.Equal(t, want, feed.Config())
}

func TestWatchPosition_DistanceFilter(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	id := svc.WatchPosition(got.success, got.failure, &domain.WatchOptions{DistanceFilter: domain.Float(100)})
	require.NotZero(t, id)
	waitSubscribers(t, feed, 1)

	feed.Push(fixAt(0))
	feed.Push(fixAt(10))  // 10 m from the last report
	feed.Push(fixAt(150)) // 150 m from the last report
	feed.Push(fixAt(200)) // 50 m from the last report
	flush(t, svc)

	require.Eventually(t, func() bool { n, _ := got.counts(); return n == 2 }, 2*time.Second, 5*time.Millisecond)
	positions, errs := got.snapshot()
	assert.Empty(t, errs)
	assert.InDelta(t, 0, geo.Distance(origin, geo.FromCoords(positions[0].Coords)), 0.01)
	assert.InDelta(t, 150, geo.Distance(origin, geo.FromCoords(positions[1].Coords)), 0.01)
}

func TestWatchPosition_SignificantChanges(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformIOS, provider.Granted())
	var got sink

	svc.WatchPosition(got.success, got.failure, &domain.WatchOptions{UseSignificantChanges: true})
	waitSubscribers(t, feed, 1)

	feed.Push(fixAt(0))
	feed.Push(fixAt(1))    // same cell
	feed.Push(fixAt(5000)) // several cells away
	flush(t, svc)

	require.Eventually(t, func() bool { n, _ := got.counts(); return n == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, feed.Requests()[0].SignificantChanges)
}

func TestWatchPosition_TimeoutKeepsWatching(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	svc.WatchPosition(got.success, got.failure, &domain.WatchOptions{
		RequestOptions: domain.RequestOptions{Timeout: domain.Duration(30 * time.Millisecond)},
	})
	waitSubscribers(t, feed, 1)

	require.Eventually(t, func() bool { _, e := got.counts(); return e >= 1 }, 2*time.Second, 5*time.Millisecond)
	feed.Push(fixAt(0))

	require.Eventually(t, func() bool { n, _ := got.counts(); return n == 1 }, 2*time.Second, 5*time.Millisecond)
	_, errs := got.snapshot()
	assert.Equal(t, domain.Timeout, errs[0].Code)
}

func TestWatchPosition_InvalidOptions(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	id := svc.WatchPosition(got.success, got.failure, &domain.WatchOptions{DistanceFilter: domain.Float(-1)})
	assert.NotZero(t, id)

	require.Eventually(t, func() bool { _, e := got.counts(); return e == 1 }, 2*time.Second, 5*time.Millisecond)
	_, errs := got.snapshot()
	assert.Equal(t, domain.PositionUnavailable, errs[0].Code)
	assert.NoError(t, svc.ClearWatch(id))
}

func TestWatchPosition_PermissionDeniedEndsWatch(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.NewPermissions(domain.Denied, domain.Denied))
	var got sink

	svc.WatchPosition(got.success, got.failure, nil)

	require.Eventually(t, func() bool { _, e := got.counts(); return e == 1 }, 2*time.Second, 5*time.Millisecond)
	_, errs := got.snapshot()
	assert.Equal(t, domain.PermissionDenied, errs[0].Code)
	assert.Zero(t, feed.Subscribers())
	require.Eventually(t, func() bool { return len(svc.ActiveWatches()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWatchPosition_DeniedMidStreamRetiresWatch(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	id := svc.WatchPosition(got.success, got.failure, nil)
	waitSubscribers(t, feed, 1)
	require.Equal(t, []domain.WatchID{id}, svc.ActiveWatches())

	feed.Fail(domain.NewPositionError(domain.PermissionDenied, "revoked in settings"))

	require.Eventually(t, func() bool { _, e := got.counts(); return e == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(svc.ActiveWatches()) == 0 }, 2*time.Second, 5*time.Millisecond)
	waitSubscribers(t, feed, 0)
	assert.ErrorIs(t, svc.ClearWatch(id), domain.ErrUnknownWatch)
}

func TestWatchPosition_ZeroTimeoutReportsOncePerQuietPeriod(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var got sink

	svc.WatchPosition(got.success, got.failure, &domain.WatchOptions{
		RequestOptions: domain.RequestOptions{Timeout: domain.Duration(0)},
		DistanceFilter: domain.Float(0),
	})
	waitSubscribers(t, feed, 1)

	require.Eventually(t, func() bool { _, e := got.counts(); return e >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	flush(t, svc)
	_, errs := got.counts()
	assert.Equal(t, 1, errs, "a silent platform must not produce a stream of timeouts")

	feed.Push(fixAt(0))
	require.Eventually(t, func() bool { n, _ := got.counts(); return n == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	flush(t, svc)
	_, errs = got.counts()
	assert.LessOrEqual(t, errs, 2)
}

func TestClearWatch_Isolation(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var a, b sink

	idA := svc.WatchPosition(a.success, a.failure, &domain.WatchOptions{DistanceFilter: domain.Float(0)})
	idB := svc.WatchPosition(b.success, b.failure, &domain.WatchOptions{DistanceFilter: domain.Float(0)})
	assert.NotEqual(t, idA, idB)
	waitSubscribers(t, feed, 2)

	feed.Push(fixAt(0))
	flush(t, svc)
	require.Eventually(t, func() bool {
		na, _ := a.counts()
		nb, _ := b.counts()
		return na == 1 && nb == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, svc.ClearWatch(idA))
	waitSubscribers(t, feed, 1)

	feed.Push(fixAt(50))
	require.Eventually(t, func() bool { nb, _ := b.counts(); return nb == 2 }, 2*time.Second, 5*time.Millisecond)
	flush(t, svc)
	na, _ := a.counts()
	assert.Equal(t, 1, na)

	assert.ErrorIs(t, svc.ClearWatch(idA), domain.ErrUnknownWatch)
	assert.ErrorIs(t, svc.ClearWatch(0), domain.ErrUnknownWatch)
	assert.Equal(t, []domain.WatchID{idB}, svc.ActiveWatches())
}

func TestWatchHandles_ReusedSlotsGetNewIDs(t *testing.T) {
	svc, _ := newFeedService(t, domain.PlatformAndroid, provider.Granted())

	seen := make(map[domain.WatchID]bool)
	for i := 0; i < 20; i++ {
		id := svc.WatchPosition(nil, nil, nil)
		require.False(t, seen[id], "handle %s reused", id)
		seen[id] = true
		require.NoError(t, svc.ClearWatch(id))
	}
	assert.Empty(t, svc.ActiveWatches())
}

func TestStopObserving_Barrier(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	var w, c sink

	svc.WatchPosition(w.success, w.failure, &domain.WatchOptions{DistanceFilter: domain.Float(0)})
	svc.WatchPosition(w.success, w.failure, nil)
	svc.GetCurrentPosition(c.success, c.failure, &domain.RequestOptions{MaximumAge: domain.Duration(0)})
	waitSubscribers(t, feed, 3)

	svc.StopObserving()
	waitSubscribers(t, feed, 0)
	feed.Push(fixAt(0))
	time.Sleep(20 * time.Millisecond)
	flush(t, svc)

	wn, we := w.counts()
	cn, ce := c.counts()
	assert.Zero(t, wn+we+cn+ce)
	assert.Empty(t, svc.ActiveWatches())

	// the facade stays usable afterwards
	done := make(chan error, 1)
	go func() {
		_, err := svc.CurrentPosition(context.Background(), &domain.RequestOptions{MaximumAge: domain.Duration(0)})
		done <- err
	}()
	waitSubscribers(t, feed, 1)
	feed.Push(fixAt(1))
	assert.NoError(t, <-done)
}

func TestWatchPosition_CachedFixDeliveredFirst(t *testing.T) {
	svc, feed := newFeedService(t, domain.PlatformAndroid, provider.Granted())
	cachedFix := fixAt(0)
	svc.remember(cachedFix)

	var got sink
	svc.WatchPosition(got.success, got.failure, nil)

	require.Eventually(t, func() bool { n, _ := got.counts(); return n == 1 }, 2*time.Second, 5*time.Millisecond)
	positions, _ := got.snapshot()
	assert.Equal(t, cachedFix, positions[0])
	waitSubscribers(t, feed, 1)
}

type memRecorder struct {
	mu   sync.Mutex
	recs []domain.FixRecord
}

func (m *memRecorder) Record(rec domain.FixRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
}

func (m *memRecorder) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func TestRecorderReceivesDeliveredFixes(t *testing.T) {
	feed := provider.NewFeed(domain.PlatformAndroid, provider.Granted())
	rec := &memRecorder{}
	svc := NewService(feed, WithRecorder(rec))
	defer svc.Close()

	id := svc.WatchPosition(nil, nil, nil)
	waitSubscribers(t, feed, 1)
	feed.Push(fixAt(0))

	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, domain.SourceWatch, rec.recs[0].Source)
	assert.Equal(t, id, rec.recs[0].WatchID)
	assert.NotEmpty(t, rec.recs[0].ID)
}

func TestSerialExecutor_FIFOAndPanicSafe(t *testing.T) {
	exec := newSerialExecutor(slog.Default())
	defer exec.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		if i == 10 {
			exec.Execute(func() { panic("boom") })
		}
		exec.Execute(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 49 {
				close(done)
			}
		})
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSerialExecutor_DropsAfterClose(t *testing.T) {
	exec := newSerialExecutor(slog.Default())
	exec.Close()
	ran := false
	exec.Execute(func() { ran = true })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran)
}
