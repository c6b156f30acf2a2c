package fake

import (
	"time"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/provider"
)

// SatelliteRequest is one RequestUpdates call.
type SatelliteRequest struct {
	Source      location.Source
	MinTime     time.Duration
	MinDistance float64
}

// SatellitePlatform is a raw positioning layer tests toggle by hand.
type SatellitePlatform struct {
	Enabled map[location.Source]bool
	Last    map[location.Source]*location.Sample
	Err     error

	Requests []SatelliteRequest
	Removed  int
	// Listener is the last listener ever registered, kept after removal.
	Listener provider.UpdateListener

	active map[location.Source]provider.UpdateListener
}

func NewSatellitePlatform(enabled ...location.Source) *SatellitePlatform {
	p := &SatellitePlatform{
		Enabled: make(map[location.Source]bool),
		Last:    make(map[location.Source]*location.Sample),
		active:  make(map[location.Source]provider.UpdateListener),
	}
	for _, src := range enabled {
		p.Enabled[src] = true
	}
	return p
}

func (p *SatellitePlatform) IsEnabled(src location.Source) bool { return p.Enabled[src] }

func (p *SatellitePlatform) LastKnown(src location.Source) *location.Sample { return p.Last[src] }

func (p *SatellitePlatform) RequestUpdates(src location.Source, minTime time.Duration, minDistance float64, l provider.UpdateListener) error {
	if p.Err != nil {
		return p.Err
	}
	p.Requests = append(p.Requests, SatelliteRequest{Source: src, MinTime: minTime, MinDistance: minDistance})
	p.active[src] = l
	p.Listener = l
	return nil
}

func (p *SatellitePlatform) RemoveUpdates(l provider.UpdateListener) {
	p.Removed++
	for src, reg := range p.active {
		if reg == l {
			delete(p.active, src)
		}
	}
}

// Registered reports whether anyone listens on src.
func (p *SatellitePlatform) Registered(src location.Source) bool {
	_, ok := p.active[src]
	return ok
}

// Emit delivers s to the listener registered on its source. It reports
// false when nobody is registered.
func (p *SatellitePlatform) Emit(s location.Sample) bool {
	l, ok := p.active[s.Source]
	if !ok {
		return false
	}
	l.OnLocationUpdate(s)
	return true
}

// FusedClient is a vendor fused service whose callbacks tests complete by
// hand.
type FusedClient struct {
	LastCalls     int
	Checks        []config.Request
	Resolutions   []provider.SettingsError
	ResolutionErr error
	UpdatesErr    error
	Requests      int
	Removes       int
	Requesting    bool

	lastCB     func(*location.Sample, error)
	settingsCB func(error)
	updatesCB  func([]location.Sample)
}

func (f *FusedClient) LastLocation(cb func(*location.Sample, error)) {
	f.LastCalls++
	f.lastCB = cb
}

func (f *FusedClient) CheckSettings(req config.Request, cb func(error)) {
	f.Checks = append(f.Checks, req)
	f.settingsCB = cb
}

func (f *FusedClient) StartResolution(_ host.Activity, err *provider.SettingsError, _ host.RequestCode) error {
	if f.ResolutionErr != nil {
		return f.ResolutionErr
	}
	f.Resolutions = append(f.Resolutions, *err)
	return nil
}

func (f *FusedClient) RequestUpdates(_ config.Request, cb func([]location.Sample)) error {
	if f.UpdatesErr != nil {
		return f.UpdatesErr
	}
	f.Requests++
	f.Requesting = true
	f.updatesCB = cb
	return nil
}

func (f *FusedClient) RemoveUpdates() {
	f.Removes++
	f.Requesting = false
}

// CompleteLast answers the pending LastLocation call.
func (f *FusedClient) CompleteLast(s *location.Sample, err error) {
	cb := f.lastCB
	f.lastCB = nil
	if cb != nil {
		cb(s, err)
	}
}

// CompleteSettings answers the pending CheckSettings call.
func (f *FusedClient) CompleteSettings(err error) {
	cb := f.settingsCB
	f.settingsCB = nil
	if cb != nil {
		cb(err)
	}
}

// Deliver sends a batch through the current update registration, even a
// removed one.
func (f *FusedClient) Deliver(batch ...location.Sample) {
	if f.updatesCB != nil {
		f.updatesCB(batch)
	}
}

// Availability reports a fixed fused service status.
type Availability struct {
	Current    provider.ServiceStatus
	Resolvable bool
	// Refuse makes ErrorDialog return nil.
	Refuse  bool
	Dialogs []*Dialog
	Asked   []provider.ServiceStatus
}

func (a *Availability) Status() provider.ServiceStatus { return a.Current }

func (a *Availability) IsUserResolvable(provider.ServiceStatus) bool { return a.Resolvable }

func (a *Availability) ErrorDialog(_ host.Activity, s provider.ServiceStatus, _ host.RequestCode, onCancel func()) dialog.Dialog {
	a.Asked = append(a.Asked, s)
	if a.Refuse {
		return nil
	}
	d := &Dialog{}
	d.OnCancel(onCancel)
	a.Dialogs = append(a.Dialogs, d)
	return d
}

// Last returns the most recent error dialog.
func (a *Availability) Last() *Dialog {
	if len(a.Dialogs) == 0 {
		return nil
	}
	return a.Dialogs[len(a.Dialogs)-1]
}
