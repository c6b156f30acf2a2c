package provider

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
)

// SettingsStatus classifies a failed settings check.
type SettingsStatus int

const (
	SettingsResolutionRequired SettingsStatus = 6
	SettingsNetworkError       SettingsStatus = 7
	SettingsInternalError      SettingsStatus = 8
	SettingsTimeout            SettingsStatus = 15
	SettingsChangeUnavailable  SettingsStatus = 8502
)

func (s SettingsStatus) String() string {
	switch s {
	case SettingsResolutionRequired:
		return "resolution_required"
	case SettingsNetworkError:
		return "network_error"
	case SettingsInternalError:
		return "internal_error"
	case SettingsTimeout:
		return "timeout"
	case SettingsChangeUnavailable:
		return "change_unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SettingsError is returned by a settings check the device does not pass.
type SettingsError struct {
	Status SettingsStatus
	// Resolution is handed back to FusedClient.StartResolution.
	Resolution any
}

func (e *SettingsError) Error() string {
	return "location settings not satisfied: " + e.Status.String()
}

// FusedClient is the vendor fused-location service. Every callback must be
// delivered on the loop that drives the provider.
type FusedClient interface {
	// LastLocation reports the last cached fix, or nil when there is none.
	LastLocation(cb func(*location.Sample, error))
	// CheckSettings reports nil when the device can serve req. A check the
	// user may fix is reported as a *SettingsError.
	CheckSettings(req config.Request, cb func(error))
	// StartResolution shows the system dialog that fixes err. Its outcome
	// arrives as an activity result for code.
	StartResolution(a host.Activity, err *SettingsError, code host.RequestCode) error
	RequestUpdates(req config.Request, cb func([]location.Sample)) error
	RemoveUpdates()
}

// FallbackListener is told when a fused session gives up and the raw
// sources should be tried instead.
type FallbackListener interface {
	OnFallback()
}

// FusedProvider reads the vendor fused-location service.
type FusedProvider struct {
	client   FusedClient
	fallback FallbackListener
	binding  Binding

	waiting       bool
	dialogShowing bool
	requesting    bool
	paused        bool

	// session and updates discard callbacks from earlier calls.
	session uint64
	updates uint64
}

// NewFused creates a provider over client. When fallback is set and the
// configuration allows it, failures are handed to fallback instead of the
// session listener.
func NewFused(client FusedClient, fallback FallbackListener) *FusedProvider {
	return &FusedProvider{
		client:   client,
		fallback: fallback,
		binding:  Binding{}.normalize(),
	}
}

func (p *FusedProvider) Configure(b Binding)   { p.binding = b.normalize() }
func (p *FusedProvider) Binding() Binding      { return p.binding }
func (p *FusedProvider) IsWaiting() bool       { return p.waiting }
func (p *FusedProvider) IsDialogShowing() bool { return p.dialogShowing }

func (p *FusedProvider) Get() {
	p.waiting = true
	p.session++

	if !p.binding.Host.Valid() {
		p.failed(location.FailHostDetached)
		return
	}
	cfg := p.binding.Config.Fused
	if cfg == nil {
		p.failed(location.FailFusedConfigMissing)
		return
	}
	if p.client == nil {
		p.failed(location.FailFusedNotAvailable)
		return
	}

	if cfg.IgnoreLastKnown {
		p.binding.Logger.Debug("ignoring last known location")
		p.locationRequired()
		return
	}

	session := p.session
	p.client.LastLocation(func(s *location.Sample, err error) {
		if session != p.session {
			return
		}
		p.onLastLocation(s, err)
	})
}

func (p *FusedProvider) onLastLocation(s *location.Sample, err error) {
	if err != nil || s == nil {
		p.binding.Logger.Debug("last known location is not available", zap.Error(err))
		p.locationRequired()
		return
	}
	p.binding.Logger.Debug("last known location is available")
	p.onLocationChanged(*s)
	if p.binding.keepTracking() {
		p.locationRequired()
	}
}

func (p *FusedProvider) locationRequired() {
	if !p.binding.Config.Fused.AskForSettings {
		p.requestUpdates()
		return
	}

	session := p.session
	p.client.CheckSettings(p.binding.Config.Fused.Request, func(err error) {
		if session != p.session {
			return
		}
		p.onSettingsChecked(err)
	})
}

func (p *FusedProvider) onSettingsChecked(err error) {
	if err == nil {
		p.requestUpdates()
		return
	}

	var serr *SettingsError
	errors.As(err, &serr)
	switch {
	case serr != nil && serr.Status == SettingsChangeUnavailable:
		p.binding.Logger.Warn("settings change is not available")
		p.settingsFail(location.FailSettingsDialog)
	case serr != nil && serr.Status == SettingsResolutionRequired:
		p.resolve(serr)
	default:
		p.binding.Logger.Warn("location settings check failed", zap.Error(err))
		p.settingsFail(location.FailSettingsDenied)
	}
}

func (p *FusedProvider) resolve(serr *SettingsError) {
	a := p.binding.Host.Activity()
	if a == nil {
		p.binding.Logger.Info("settings resolution needs an activity")
		p.settingsFail(location.FailHostWrongType)
		return
	}
	if err := p.client.StartResolution(a, serr, host.RequestSettingsResolution); err != nil {
		p.binding.Logger.Warn("show settings resolution", zap.Error(err))
		p.settingsFail(location.FailSettingsDialog)
		return
	}
	p.dialogShowing = true
}

func (p *FusedProvider) settingsFail(reason location.FailReason) {
	if p.binding.Config.Fused.FailOnSettingsSuspended {
		p.failed(reason)
		return
	}
	p.binding.Logger.Info("settings check failed, requesting updates anyway",
		zap.Stringer("reason", reason))
	p.requestUpdates()
}

func (p *FusedProvider) requestUpdates() {
	p.binding.Listener.OnProcessTypeChanged(location.FromFused)
	if p.requesting {
		p.client.RemoveUpdates()
		p.requesting = false
	}
	p.paused = false

	p.updates++
	gen := p.updates
	err := p.client.RequestUpdates(p.binding.Config.Fused.Request, func(batch []location.Sample) {
		for _, s := range batch {
			if gen != p.updates || !p.requesting {
				return
			}
			p.onLocationChanged(s)
		}
	})
	if err != nil {
		p.binding.Logger.Warn("request fused updates", zap.Error(err))
		p.failed(location.FailFusedNotAvailable)
		return
	}
	p.requesting = true
}

func (p *FusedProvider) onLocationChanged(s location.Sample) {
	p.binding.Listener.OnLocationChanged(s)
	// One fix is enough to stop waiting, even when tracking.
	p.waiting = false
	if !p.binding.keepTracking() {
		p.removeUpdates()
	}
}

func (p *FusedProvider) failed(reason location.FailReason) {
	p.waiting = false
	cfg := p.binding.Config.Fused
	if cfg != nil && cfg.FallbackToSatellite && p.fallback != nil {
		p.binding.Logger.Info("fused failed, falling back", zap.Stringer("reason", reason))
		p.fallback.OnFallback()
		return
	}
	p.binding.Listener.OnLocationFailed(reason)
}

func (p *FusedProvider) removeUpdates() {
	if !p.requesting {
		return
	}
	p.requesting = false
	p.client.RemoveUpdates()
}

func (p *FusedProvider) OnActivityResult(code host.RequestCode, result host.Result, _ any) {
	if code != host.RequestSettingsResolution {
		return
	}
	p.dialogShowing = false
	if !p.waiting {
		return
	}
	if result == host.ResultOK {
		p.binding.Logger.Info("settings changed, requesting updates")
		p.requestUpdates()
		return
	}
	p.binding.Logger.Info("user denied the settings resolution")
	p.settingsFail(location.FailSettingsDenied)
}

func (p *FusedProvider) OnPause() {
	if p.dialogShowing || !p.requesting {
		return
	}
	p.removeUpdates()
	p.paused = true
}

func (p *FusedProvider) OnResume() {
	if p.dialogShowing || !p.paused {
		return
	}
	if p.waiting || p.binding.keepTracking() {
		p.requestUpdates()
	}
}

func (p *FusedProvider) Cancel() {
	p.binding.Logger.Debug("canceling fused provider")
	p.removeUpdates()
	p.waiting = false
	p.paused = false
	p.dialogShowing = false
	p.session++
}

func (p *FusedProvider) OnDestroy() {
	p.Cancel()
	p.binding.Listener = location.NopListener{}
}
