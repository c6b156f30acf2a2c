package platform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/geofix/internal/cache"
	"github.com/shaunagostinho/geofix/internal/gps"
	"github.com/shaunagostinho/geofix/internal/location"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// chanLoop queues posted callbacks; the test goroutine runs them.
type chanLoop struct {
	posted chan func()
}

func newChanLoop() *chanLoop { return &chanLoop{posted: make(chan func(), 1024)} }

func (l *chanLoop) Post(fn func()) bool {
	select {
	case l.posted <- fn:
		return true
	default:
		return false
	}
}

func (l *chanLoop) Now() time.Time { return epoch }

func (l *chanLoop) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case fn := <-l.posted:
			fn()
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d callbacks arrived", i, n)
		}
	}
}

func (l *chanLoop) runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case fn := <-l.posted:
			fn()
		case <-deadline:
			t.Fatal("condition never held")
		}
	}
}

type receiver struct {
	mu        sync.Mutex
	data      gps.Data
	failFirst int
	connects  int
	closed    bool
	readErr   error
}

func (r *receiver) Name() string { return "test receiver" }

func (r *receiver) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	if r.connects <= r.failFirst {
		return errors.New("port busy")
	}
	return nil
}

func (r *receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *receiver) Read() (*gps.Data, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.data
	return &d, r.readErr
}

func (r *receiver) set(fn func(r *receiver)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type network struct {
	sample location.Sample
	err    error
}

func (n network) Lookup(context.Context) (location.Sample, error) { return n.sample, n.err }

type updates struct {
	samples  []location.Sample
	statuses []int
	enabled  []location.Source
	disabled []location.Source
	onUpdate func()
}

func (u *updates) OnLocationUpdate(s location.Sample) {
	u.samples = append(u.samples, s)
	if u.onUpdate != nil {
		u.onUpdate()
	}
}
func (u *updates) OnStatusChanged(_ location.Source, status int, _ map[string]string) {
	u.statuses = append(u.statuses, status)
}
func (u *updates) OnProviderEnabled(src location.Source)  { u.enabled = append(u.enabled, src) }
func (u *updates) OnProviderDisabled(src location.Source) { u.disabled = append(u.disabled, src) }

var fix = gps.Data{Valid: true, Latitude: 43.65, Longitude: -79.38, HDOP: 0.8, FixQuality: 1, Satellites: 9}

func newSatellite(t *testing.T, loop *chanLoop, cfg Config) *Satellite {
	t.Helper()
	if cfg.GPSInterval == 0 {
		cfg.GPSInterval = time.Hour
	}
	if cfg.NetworkInterval == 0 {
		cfg.NetworkInterval = time.Hour
	}
	p := New(loop, cfg, nil)
	p.retryBase = time.Millisecond
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSatellite_SourcesComeUp(t *testing.T) {
	loop := newChanLoop()
	p := newSatellite(t, loop, Config{Receiver: &receiver{failFirst: 2}})

	assert.False(t, p.IsEnabled(location.SourceGPS))
	assert.False(t, p.IsEnabled(location.SourceNetwork))
	assert.ErrorIs(t, p.RequestUpdates(location.SourceGPS, 0, 0, &updates{}), ErrSourceDisabled)

	p.Start(context.Background())
	loop.run(t, 1)
	assert.True(t, p.IsEnabled(location.SourceGPS))
	assert.False(t, p.IsEnabled(location.Source("wifi")))
}

func TestSatellite_GPSUpdatesAndStatus(t *testing.T) {
	loop := newChanLoop()
	rcv := &receiver{data: fix}
	p := newSatellite(t, loop, Config{Receiver: rcv})
	p.Start(context.Background())
	loop.run(t, 1)

	u := &updates{}
	require.NoError(t, p.RequestUpdates(location.SourceGPS, 0, 0, u))
	loop.run(t, 1)

	require.Len(t, u.samples, 1)
	assert.Equal(t, location.SourceGPS, u.samples[0].Source)
	assert.Equal(t, 0.8*gps.UERE, u.samples[0].Accuracy)
	assert.Equal(t, epoch, u.samples[0].Time)
	assert.Equal(t, []int{gps.StatusAvailable}, u.statuses)
	require.NotNil(t, p.LastKnown(location.SourceGPS))

	p.RemoveUpdates(u)
	assert.Empty(t, p.pumps)
	p.onGPS(fix)
	assert.Len(t, u.samples, 1, "removed listeners hear nothing")

	require.NoError(t, p.Close())
	assert.True(t, rcv.closed)
}

func TestSatellite_GPSGoesDownWhenReceiverFails(t *testing.T) {
	loop := newChanLoop()
	rcv := &receiver{data: fix}
	p := newSatellite(t, loop, Config{Receiver: rcv, GPSInterval: time.Millisecond})
	p.Start(context.Background())
	loop.run(t, 1)

	rcv.set(func(r *receiver) {
		r.readErr = gps.ErrNotConnected
		r.failFirst = 1000
	})
	u := &updates{}
	require.NoError(t, p.RequestUpdates(location.SourceGPS, 0, 0, u))
	loop.runUntil(t, func() bool { return !p.IsEnabled(location.SourceGPS) })

	assert.Equal(t, []location.Source{location.SourceGPS}, u.disabled)
	assert.Empty(t, p.pumps)
	assert.ErrorIs(t, p.RequestUpdates(location.SourceGPS, 0, 0, &updates{}), ErrSourceDisabled)

	// The receiver comes back and the registration resumes.
	rcv.set(func(r *receiver) {
		r.readErr = nil
		r.failFirst = 0
	})
	loop.runUntil(t, func() bool { return len(u.samples) > 0 })
	assert.True(t, p.IsEnabled(location.SourceGPS))
	assert.Equal(t, []location.Source{location.SourceGPS}, u.enabled)

	require.NoError(t, p.Close())
	loop.runUntil(t, func() bool { return !p.IsEnabled(location.SourceGPS) })
	assert.Len(t, u.disabled, 2)
}

func TestSatellite_ThresholdsFilterUpdates(t *testing.T) {
	loop := newChanLoop()
	p := newSatellite(t, loop, Config{Receiver: &receiver{}})
	p.gpsUp = true

	u := &updates{}
	require.NoError(t, p.RequestUpdates(location.SourceGPS, time.Minute, 100, u))

	base := location.Sample{Latitude: 43.65, Longitude: -79.38, Time: epoch, Source: location.SourceGPS}
	p.deliver(base)

	near := base
	near.Time = epoch.Add(2 * time.Minute)
	near.Latitude += 0.0001 // ~11 m
	p.deliver(near)

	soon := base
	soon.Time = epoch.Add(30 * time.Second)
	soon.Latitude += 0.01
	p.deliver(soon)

	far := base
	far.Time = epoch.Add(2 * time.Minute)
	far.Latitude += 0.01 // ~1.1 km
	p.deliver(far)

	require.Len(t, u.samples, 2)
	assert.Equal(t, base, u.samples[0])
	assert.Equal(t, far, u.samples[1])
	assert.Equal(t, far, *p.LastKnown(location.SourceGPS), "last known tracks every fix")
}

func TestSatellite_ListenerMayUnregisterWhileNotified(t *testing.T) {
	loop := newChanLoop()
	p := newSatellite(t, loop, Config{Receiver: &receiver{}})
	p.gpsUp = true

	first, second := &updates{}, &updates{}
	first.onUpdate = func() { p.RemoveUpdates(first) }
	require.NoError(t, p.RequestUpdates(location.SourceGPS, 0, 0, first))
	require.NoError(t, p.RequestUpdates(location.SourceGPS, 0, 0, second))

	p.deliver(location.Sample{Time: epoch, Source: location.SourceGPS})
	p.deliver(location.Sample{Time: epoch.Add(time.Second), Source: location.SourceGPS})

	assert.Len(t, first.samples, 1)
	assert.Len(t, second.samples, 2)
}

func TestSatellite_NetworkUpdatesAreCached(t *testing.T) {
	loop := newChanLoop()
	store := cache.NewMemory(0)
	want := location.Sample{Latitude: 52.2, Longitude: 21.0, Accuracy: 5000, Time: epoch, Source: location.SourceNetwork}
	p := newSatellite(t, loop, Config{Network: network{sample: want}, Store: store})

	require.True(t, p.IsEnabled(location.SourceNetwork))
	u := &updates{}
	require.NoError(t, p.RequestUpdates(location.SourceNetwork, 0, 0, u))
	loop.run(t, 1)

	assert.Equal(t, []location.Sample{want}, u.samples)
	assert.Equal(t, &want, p.LastKnown(location.SourceNetwork))
	assert.Eventually(t, func() bool {
		s, _ := store.Get(context.Background(), location.SourceNetwork)
		return s != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSatellite_StartLoadsCachedNetworkFix(t *testing.T) {
	loop := newChanLoop()
	store := cache.NewMemory(0)
	cached := location.Sample{Latitude: 1, Time: epoch.Add(-time.Minute), Source: location.SourceNetwork}
	require.NoError(t, store.Put(context.Background(), cached))

	p := newSatellite(t, loop, Config{Network: network{err: errors.New("offline")}, Store: store})
	assert.Nil(t, p.LastKnown(location.SourceNetwork))

	p.Start(context.Background())
	loop.run(t, 1)
	assert.Equal(t, &cached, p.LastKnown(location.SourceNetwork))
}

func TestConnectWithRetry_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(newChanLoop(), Config{}, nil)

	assert.False(t, connectWithRetry(ctx, p.logger, &receiver{failFirst: 100}, 3, time.Millisecond))
}
