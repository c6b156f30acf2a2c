package provider

import (
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/task"
)

// SatelliteSwitchTask is the id of the timer bounding each raw source.
const SatelliteSwitchTask = "providerSwitchTask"

// SatellitePlatform is the device's raw positioning layer.
type SatellitePlatform interface {
	IsEnabled(src location.Source) bool
	// LastKnown returns nil when the source has never produced a fix.
	LastKnown(src location.Source) *location.Sample
	RequestUpdates(src location.Source, minTime time.Duration, minDistance float64, l UpdateListener) error
	// RemoveUpdates drops every registration of l.
	RemoveUpdates(l UpdateListener)
}

// UpdateListener receives live updates from a SatellitePlatform.
type UpdateListener interface {
	OnLocationUpdate(s location.Sample)
	OnStatusChanged(src location.Source, status int, extras map[string]string)
	OnProviderEnabled(src location.Source)
	OnProviderDisabled(src location.Source)
}

// SatelliteProvider reads the GPS source first and falls back to the network
// source when GPS is off, refused, or too slow.
type SatelliteProvider struct {
	platform SatellitePlatform
	sched    task.Scheduler
	binding  Binding

	updates *satelliteUpdates
	request *updateRequest
	switchT *task.Task

	source    location.Source
	waiting   bool
	gpsDialog dialog.Dialog
}

// NewSatellite creates a provider over platform. sched drives the switch
// timer and must be the loop the provider is called on.
func NewSatellite(platform SatellitePlatform, sched task.Scheduler) *SatelliteProvider {
	p := &SatelliteProvider{
		platform: platform,
		sched:    sched,
		source:   location.SourceGPS,
		binding:  Binding{}.normalize(),
	}
	p.updates = &satelliteUpdates{p: p}
	p.request = &updateRequest{platform: platform, listener: p.updates}
	p.switchT = task.New(SatelliteSwitchTask, p, sched)
	return p
}

func (p *SatelliteProvider) Configure(b Binding) { p.binding = b.normalize() }
func (p *SatelliteProvider) Binding() Binding    { return p.binding }
func (p *SatelliteProvider) IsWaiting() bool     { return p.waiting }

// Source returns the raw source currently being tried.
func (p *SatelliteProvider) Source() location.Source { return p.source }

func (p *SatelliteProvider) IsDialogShowing() bool {
	return p.gpsDialog != nil && p.gpsDialog.IsShowing()
}

func (p *SatelliteProvider) Get() {
	p.waiting = true
	log := p.binding.Logger

	sat := p.binding.Config.Satellite
	if sat == nil {
		log.Warn("satellite configuration missing")
		p.failed(location.FailSatelliteConfigMissing)
		return
	}

	switch {
	case p.enabled(location.SourceGPS):
		log.Info("gps is enabled, getting location")
		p.askForLocation(location.SourceGPS)
	case sat.AskForEnableGPS() && p.binding.Host.Activity() != nil:
		log.Info("gps is not enabled, asking user to enable it")
		p.askForEnableGPS()
	default:
		log.Info("gps is not enabled, moving on with network")
		p.byNetwork()
	}
}

func (p *SatelliteProvider) askForEnableGPS() {
	d := p.binding.Config.Satellite.GPSDialog.Dialog(p.binding.Host.Activity(), gpsClicks{p})
	if d == nil {
		p.binding.Logger.Info("gps dialog unavailable, moving on with network")
		p.byNetwork()
		return
	}
	d.OnCancel(p.byNetwork)
	p.gpsDialog = d
	d.Show()
}

func (p *SatelliteProvider) byNetwork() {
	if p.enabled(location.SourceNetwork) {
		p.binding.Logger.Info("network is enabled, getting location")
		p.askForLocation(location.SourceNetwork)
		return
	}
	p.binding.Logger.Info("network is not enabled, failing")
	p.failed(location.FailNetworkNotAvailable)
}

func (p *SatelliteProvider) askForLocation(src location.Source) {
	p.switchT.Stop()
	p.source = src

	cached := p.checkLastKnown()
	if cached && !p.binding.keepTracking() {
		p.binding.Logger.Debug("last known location is usable, no updates needed",
			zap.String("source", string(src)))
		return
	}

	p.binding.Listener.OnProcessTypeChanged(location.ProcessFor(src))
	if !cached {
		p.switchT.Delayed(p.waitPeriod())
	}

	sat := p.binding.Config.Satellite
	if err := p.request.start(src, sat.RequiredTimeInterval, sat.RequiredDistanceInterval); err != nil {
		p.binding.Logger.Warn("request location updates",
			zap.String("source", string(src)), zap.Error(err))
	}
}

func (p *SatelliteProvider) checkLastKnown() bool {
	if p.platform == nil {
		return false
	}
	sat := p.binding.Config.Satellite
	last := p.platform.LastKnown(p.source)
	if !last.Sufficient(p.sched.Now(), sat.AcceptableTimePeriod, sat.AcceptableAccuracy) {
		return false
	}
	p.received(*last)
	return true
}

func (p *SatelliteProvider) waitPeriod() time.Duration {
	if p.source == location.SourceGPS {
		return p.binding.Config.Satellite.GPSWaitPeriod
	}
	return p.binding.Config.Satellite.NetworkWaitPeriod
}

func (p *SatelliteProvider) enabled(src location.Source) bool {
	return p.platform != nil && p.platform.IsEnabled(src)
}

func (p *SatelliteProvider) received(s location.Sample) {
	p.binding.Listener.OnLocationChanged(s)
	p.waiting = false
}

func (p *SatelliteProvider) failed(reason location.FailReason) {
	p.binding.Listener.OnLocationFailed(reason)
	p.waiting = false
}

func (p *SatelliteProvider) onLocationUpdate(s location.Sample) {
	// A fix queued before the source switched belongs to the old request.
	if !p.request.active || s.Source != p.request.src {
		return
	}
	p.received(s)
	p.switchT.Stop()
	if !p.binding.keepTracking() {
		p.request.release()
	}
}

// RunScheduledTask handles the switch timer.
func (p *SatelliteProvider) RunScheduledTask(id string) {
	if id != SatelliteSwitchTask || !p.waiting {
		return
	}
	p.request.release()
	if p.source == location.SourceGPS {
		p.binding.Logger.Info("waited enough for gps, switching to network")
		p.byNetwork()
		return
	}
	p.binding.Logger.Info("network did not provide a location in time")
	p.failed(location.FailTimeout)
}

func (p *SatelliteProvider) OnActivityResult(code host.RequestCode, _ host.Result, _ any) {
	if code != host.RequestGPSEnable || !p.waiting {
		return
	}
	if p.enabled(location.SourceGPS) {
		p.binding.Logger.Info("user activated gps")
		p.askForLocation(location.SourceGPS)
		return
	}
	p.binding.Logger.Info("user did not activate gps, continuing with network")
	p.byNetwork()
}

func (p *SatelliteProvider) OnPause() {
	p.request.pause()
	p.switchT.Pause()
}

func (p *SatelliteProvider) OnResume() {
	if err := p.request.resume(); err != nil {
		p.binding.Logger.Warn("resume location updates", zap.Error(err))
	}
	if p.waiting {
		p.switchT.Resume()
	}
	if p.IsDialogShowing() && p.enabled(location.SourceGPS) {
		// gps was turned on outside the dialog
		p.gpsDialog.Dismiss()
		p.askForLocation(location.SourceGPS)
	}
}

func (p *SatelliteProvider) Cancel() {
	p.request.release()
	p.switchT.Stop()
	p.waiting = false
	if p.gpsDialog != nil {
		d := p.gpsDialog
		p.gpsDialog = nil
		d.Dismiss()
	}
}

func (p *SatelliteProvider) OnDestroy() {
	p.Cancel()
	if p.platform != nil {
		p.platform.RemoveUpdates(p.updates)
	}
	p.binding.Listener = location.NopListener{}
}

type gpsClicks struct{ p *SatelliteProvider }

func (c gpsClicks) OnPositiveButtonClick() {
	if !c.p.binding.Host.StartForResult(host.ActionLocationSourceSettings, host.RequestGPSEnable) {
		c.p.binding.Logger.Warn("location settings could not be opened, continuing with network")
		c.p.byNetwork()
	}
}

func (c gpsClicks) OnNegativeButtonClick() {
	c.p.binding.Logger.Info("user did not want to enable gps, continuing with network")
	c.p.byNetwork()
}

// satelliteUpdates forwards platform callbacks. Raw status events are passed
// straight to the session listener.
type satelliteUpdates struct{ p *SatelliteProvider }

func (u *satelliteUpdates) OnLocationUpdate(s location.Sample) { u.p.onLocationUpdate(s) }

func (u *satelliteUpdates) OnStatusChanged(src location.Source, status int, extras map[string]string) {
	u.p.binding.Listener.OnStatusChanged(src, status, extras)
}

func (u *satelliteUpdates) OnProviderEnabled(src location.Source) {
	u.p.binding.Listener.OnProviderEnabled(src)
}

func (u *satelliteUpdates) OnProviderDisabled(src location.Source) {
	u.p.binding.Listener.OnProviderDisabled(src)
}

// updateRequest remembers the last registration so it can be dropped on
// pause and restored on resume. Updates arriving while it is inactive are
// stale.
type updateRequest struct {
	platform SatellitePlatform
	listener UpdateListener

	src         location.Source
	minTime     time.Duration
	minDistance float64

	active    bool
	suspended bool
}

func (r *updateRequest) start(src location.Source, minTime time.Duration, minDistance float64) error {
	r.release()
	r.src = src
	r.minTime = minTime
	r.minDistance = minDistance
	r.suspended = false
	return r.run()
}

func (r *updateRequest) run() error {
	if r.platform == nil || r.src == "" || r.active {
		return nil
	}
	if err := r.platform.RequestUpdates(r.src, r.minTime, r.minDistance, r.listener); err != nil {
		return err
	}
	r.active = true
	return nil
}

func (r *updateRequest) release() {
	r.suspended = false
	if !r.active {
		return
	}
	r.active = false
	r.platform.RemoveUpdates(r.listener)
}

func (r *updateRequest) pause() {
	if !r.active {
		return
	}
	r.release()
	r.suspended = true
}

func (r *updateRequest) resume() error {
	if !r.suspended {
		return nil
	}
	r.suspended = false
	return r.run()
}
