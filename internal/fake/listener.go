package fake

import (
	"fmt"

	"github.com/shaunagostinho/geofix/internal/location"
)

// Event is one listener callback, rendered as a short string such as
// "process:gps", "location:network", "failed:timeout" or "granted:true".
type Event string

// Listener records every callback it receives.
type Listener struct {
	Events    []Event
	Locations []location.Sample
	Failures  []location.FailReason
	Processes []location.ProcessType
}

func (l *Listener) OnProcessTypeChanged(p location.ProcessType) {
	l.Processes = append(l.Processes, p)
	l.Events = append(l.Events, Event("process:"+p.String()))
}

func (l *Listener) OnLocationChanged(s location.Sample) {
	l.Locations = append(l.Locations, s)
	l.Events = append(l.Events, Event("location:"+string(s.Source)))
}

func (l *Listener) OnLocationFailed(r location.FailReason) {
	l.Failures = append(l.Failures, r)
	l.Events = append(l.Events, Event("failed:"+r.String()))
}

func (l *Listener) OnPermissionGranted(alreadyHad bool) {
	l.Events = append(l.Events, Event(fmt.Sprintf("granted:%t", alreadyHad)))
}

func (l *Listener) OnStatusChanged(src location.Source, status int, _ map[string]string) {
	l.Events = append(l.Events, Event(fmt.Sprintf("status:%s:%d", src, status)))
}

func (l *Listener) OnProviderEnabled(src location.Source) {
	l.Events = append(l.Events, Event("enabled:"+string(src)))
}

func (l *Listener) OnProviderDisabled(src location.Source) {
	l.Events = append(l.Events, Event("disabled:"+string(src)))
}

// Terminal counts location and failure callbacks together.
func (l *Listener) Terminal() int { return len(l.Locations) + len(l.Failures) }

// Reset forgets everything recorded so far.
func (l *Listener) Reset() { *l = Listener{} }
