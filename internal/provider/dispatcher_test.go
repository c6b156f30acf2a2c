package provider_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/fake"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/looper"
	"github.com/shaunagostinho/geofix/internal/provider"
)

type dispFixture struct {
	clock    *looper.Manual
	platform *fake.SatellitePlatform
	client   *fake.FusedClient
	avail    *fake.Availability
	activity *fake.Activity
	ref      *host.Ref
	listener *fake.Listener
	cfg      *config.Location
	d        *provider.Dispatcher
}

func newDispFixture(status provider.ServiceStatus) *dispFixture {
	f := &dispFixture{
		clock:    looper.NewManual(epoch),
		platform: fake.NewSatellitePlatform(location.SourceGPS),
		client:   &fake.FusedClient{},
		avail:    &fake.Availability{Current: status},
		activity: &fake.Activity{},
		listener: &fake.Listener{},
		cfg:      config.Silent(false, fake.NewPermissionPlatform()),
	}
	f.ref = host.ForActivity(f.activity)
	factory := provider.DefaultFactory{Satellite: f.platform, Fused: f.client, Scheduler: f.clock}
	f.d = provider.NewDispatcher(factory, f.avail, f.clock)
	f.d.Configure(provider.Binding{Host: f.ref, Config: f.cfg, Listener: f.listener})
	return f
}

func (f *dispFixture) askForService() {
	f.cfg.Fused.AskForService = true
	f.avail.Resolvable = true
}

func TestDispatcher_WithoutFusedConfigUsesSatellite(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.cfg.Fused = nil

	f.d.Get()
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Zero(t, f.client.LastCalls)
	assert.Equal(t, events("process:gps"), f.listener.Events)
}

func TestDispatcher_AvailableActivatesFused(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)

	f.d.Get()
	active := f.d.ActiveProvider()
	require.IsType(t, &provider.FusedProvider{}, active)
	assert.Equal(t, 1, f.client.LastCalls)
	assert.True(t, f.d.IsWaiting())

	b := active.Binding()
	assert.Same(t, f.ref, b.Host)
	assert.Same(t, f.cfg, b.Config)
	assert.Same(t, f.listener, b.Listener)
}

func TestDispatcher_UnavailableSkipsFused(t *testing.T) {
	for _, status := range []provider.ServiceStatus{provider.ServiceMissing, provider.ServiceDisabled, provider.ServiceInvalid} {
		t.Run(status.String(), func(t *testing.T) {
			f := newDispFixture(status)
			f.avail.Resolvable = true

			f.d.Get()
			assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
			assert.Zero(t, f.client.LastCalls)
			assert.Empty(t, f.avail.Asked, "asking is off by default")
		})
	}
}

func TestDispatcher_NilAvailabilityMeansMissing(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.askForService()
	d := provider.NewDispatcher(provider.DefaultFactory{Satellite: f.platform, Scheduler: f.clock}, nil, f.clock)
	d.Configure(provider.Binding{Host: f.ref, Config: f.cfg, Listener: f.listener})

	d.Get()
	assert.IsType(t, &provider.SatelliteProvider{}, d.ActiveProvider())
}

func TestDispatcher_FusedTimeoutSwitchesToSatellite(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.d.Get()
	f.client.CompleteLast(nil, nil)
	require.True(t, f.client.Requesting)

	f.clock.Advance(config.DefaultWaitPeriod)

	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.False(t, f.client.Requesting)
	assert.Equal(t, events("process:fused", "process:gps"), f.listener.Events)
	assert.Empty(t, f.listener.Failures)

	// Late fused fixes go nowhere.
	f.client.Deliver(fusedFix(1))
	assert.Empty(t, f.listener.Locations)
}

func TestDispatcher_TimerAfterFusedSuccessIsIgnored(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.d.Get()
	last := fusedFix(3)
	f.client.CompleteLast(&last, nil)

	f.clock.Advance(time.Hour)
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider())
	assert.Equal(t, events("location:fused"), f.listener.Events)
}

func TestDispatcher_SecondSessionGetsFullWait(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.d.Get()
	first := fusedFix(3)
	f.client.CompleteLast(&first, nil)
	require.Len(t, f.listener.Locations, 1)

	f.clock.Advance(15 * time.Second)
	f.d.Get()
	f.client.CompleteLast(nil, nil)

	f.clock.Advance(6 * time.Second)
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider(), "the first session's timer is gone")

	f.clock.Advance(config.DefaultWaitPeriod - 6*time.Second)
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
}

func TestDispatcher_FusedFallbackSwitchesToSatellite(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.cfg.Fused.IgnoreLastKnown = true
	f.client.UpdatesErr = errors.New("not connected")

	f.d.Get()
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Equal(t, events("process:fused", "process:gps"), f.listener.Events)
	assert.Equal(t, 1, f.clock.Pending(), "only the gps switch timer is left")
}

func TestDispatcher_FusedFailureWithoutFallbackIsReported(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.cfg.Fused.IgnoreLastKnown = true
	f.cfg.Fused.FallbackToSatellite = false
	f.client.UpdatesErr = errors.New("not connected")

	f.d.Get()
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider())
	assert.Equal(t, []location.FailReason{location.FailFusedNotAvailable}, f.listener.Failures)

	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, f.listener.Terminal())
}

func TestDispatcher_ResolutionCanceledUsesSatellite(t *testing.T) {
	f := newDispFixture(provider.ServiceMissing)
	f.askForService()

	f.d.Get()
	dlg := f.avail.Last()
	require.NotNil(t, dlg)
	assert.Equal(t, []provider.ServiceStatus{provider.ServiceMissing}, f.avail.Asked)
	assert.True(t, dlg.Showing)
	assert.True(t, f.d.IsDialogShowing())
	assert.False(t, dlg.HasDismissHandler())
	assert.Nil(t, f.d.ActiveProvider())

	dlg.Cancel()
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Equal(t, events("process:gps"), f.listener.Events)
	assert.False(t, f.d.IsDialogShowing())
}

func TestDispatcher_ResolutionFixedRechecks(t *testing.T) {
	f := newDispFixture(provider.ServiceVersionUpdateRequired)
	f.askForService()
	f.d.Get()

	f.avail.Current = provider.ServiceAvailable
	f.d.OnActivityResult(host.RequestFusedAvailability, host.ResultOK, nil)
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider())
	assert.Equal(t, 1, f.client.LastCalls)
}

func TestDispatcher_ResolutionNotFixedDoesNotAskAgain(t *testing.T) {
	f := newDispFixture(provider.ServiceVersionUpdateRequired)
	f.askForService()
	f.d.Get()

	f.d.OnActivityResult(host.RequestFusedAvailability, host.ResultCanceled, nil)
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Len(t, f.avail.Dialogs, 1)
	assert.Equal(t, events("process:gps"), f.listener.Events)
}

func TestDispatcher_NonRecoverableStatusesSwitchOnDismiss(t *testing.T) {
	for _, status := range []provider.ServiceStatus{provider.ServiceInvalid, provider.ServiceUpdating} {
		t.Run(status.String(), func(t *testing.T) {
			f := newDispFixture(status)
			f.askForService()
			f.d.Get()

			dlg := f.avail.Last()
			require.NotNil(t, dlg)
			assert.True(t, dlg.HasDismissHandler())

			dlg.Dismiss()
			dlg.Cancel()
			assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
			assert.Equal(t, events("process:gps"), f.listener.Events, "switched exactly once")
		})
	}
}

func TestDispatcher_ServiceFixResultAfterHandOffIsIgnored(t *testing.T) {
	f := newDispFixture(provider.ServiceInvalid)
	f.askForService()
	f.d.Get()

	dlg := f.avail.Last()
	require.NotNil(t, dlg)
	dlg.Dismiss()
	require.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	require.True(t, f.platform.Emit(location.Sample{Latitude: 1, Accuracy: 5, Time: epoch, Source: location.SourceGPS}))
	require.Len(t, f.listener.Locations, 1)

	// The service came back while the raw sources were running.
	f.avail.Current = provider.ServiceAvailable
	f.d.OnActivityResult(host.RequestFusedAvailability, host.ResultOK, nil)

	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Zero(t, f.client.LastCalls)
	assert.Equal(t, 1, f.listener.Terminal())
	assert.Equal(t, events("process:gps", "location:gps"), f.listener.Events)
}

func TestDispatcher_ServiceFixResultAfterCancelIsIgnored(t *testing.T) {
	f := newDispFixture(provider.ServiceMissing)
	f.askForService()
	f.d.Get()

	f.avail.Last().Cancel()
	require.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())

	f.avail.Current = provider.ServiceAvailable
	f.d.OnActivityResult(host.RequestFusedAvailability, host.ResultOK, nil)
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
	assert.Zero(t, f.client.LastCalls)
	assert.Equal(t, events("process:gps"), f.listener.Events)
}

func TestDispatcher_ResolutionSkipped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *dispFixture)
	}{
		{"not resolvable", func(f *dispFixture) { f.avail.Resolvable = false }},
		{"no activity", func(f *dispFixture) { f.ref.Detach() }},
		{"no dialog", func(f *dispFixture) { f.avail.Refuse = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispFixture(provider.ServiceMissing)
			f.askForService()
			tt.setup(f)

			f.d.Get()
			assert.Empty(t, f.avail.Dialogs)
			assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
			assert.Zero(t, f.client.LastCalls)
		})
	}
}

func TestDispatcher_PauseHoldsFusedWait(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.d.Get()
	f.client.CompleteLast(nil, nil)

	f.clock.Advance(5 * time.Second)
	f.d.OnPause()
	assert.False(t, f.client.Requesting)

	f.clock.Advance(time.Minute)
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider())

	f.d.OnResume()
	assert.True(t, f.client.Requesting)
	f.clock.Advance(14 * time.Second)
	assert.IsType(t, &provider.FusedProvider{}, f.d.ActiveProvider())
	f.clock.Advance(time.Second)
	assert.IsType(t, &provider.SatelliteProvider{}, f.d.ActiveProvider())
}

func TestDispatcher_DelegatesActivityResults(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.cfg.Fused.AskForSettings = true
	f.cfg.Fused.IgnoreLastKnown = true
	f.d.Get()
	f.client.CompleteSettings(&provider.SettingsError{Status: provider.SettingsResolutionRequired})
	assert.True(t, f.d.IsDialogShowing())

	f.d.OnActivityResult(host.RequestSettingsResolution, host.ResultOK, nil)
	assert.False(t, f.d.IsDialogShowing())
	assert.True(t, f.client.Requesting)
}

func TestDispatcher_CancelIsIdempotent(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.d.Cancel()

	f.d.Get()
	f.client.CompleteLast(nil, nil)
	f.d.Cancel()
	f.d.Cancel()

	assert.False(t, f.d.IsWaiting())
	assert.False(t, f.client.Requesting)
	assert.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Hour)
	assert.Equal(t, events("process:fused"), f.listener.Events)
}

func TestDispatcher_DestroyReleasesEverything(t *testing.T) {
	f := newDispFixture(provider.ServiceAvailable)
	f.cfg.Fused = nil
	f.cfg.KeepTracking = true
	f.d.Get()
	require.True(t, f.platform.Registered(location.SourceGPS))

	f.d.OnDestroy()
	f.d.OnDestroy()
	assert.False(t, f.platform.Registered(location.SourceGPS))
	assert.Zero(t, f.clock.Pending())
}
