// Package events turns the listener callback stream of a session into
// serializable events and fans them out to sinks such as NATS.
package events

import (
	"time"

	"github.com/shaunagostinho/geofix/internal/location"
)

// Type names an event. It is also the last token of its NATS subject.
type Type string

const (
	TypeProcess  Type = "process"
	TypeLocation Type = "location"
	TypeFailed   Type = "failed"
	TypeGranted  Type = "granted"
	TypeStatus   Type = "status"
	TypeEnabled  Type = "enabled"
	TypeDisabled Type = "disabled"
)

// Event is one listener callback.
type Event struct {
	Type     Type              `json:"type"`
	Process  string            `json:"process,omitempty"`
	Location *location.Sample  `json:"location,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Granted  *bool             `json:"alreadyHad,omitempty"`
	Source   location.Source   `json:"source,omitempty"`
	Status   *int              `json:"status,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
	Stamp    int64             `json:"stamp"` // Unix ms
}

// Sink consumes events. Implementations must not block the loop.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Listener converts callbacks into events for every sink.
type Listener struct {
	sinks []Sink
	now   func() time.Time
}

var _ location.Listener = (*Listener)(nil)

func NewListener(sinks ...Sink) *Listener {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Listener{sinks: kept, now: time.Now}
}

func (l *Listener) emit(e Event) {
	e.Stamp = l.now().UnixMilli()
	for _, s := range l.sinks {
		s.Publish(e)
	}
}

func (l *Listener) OnProcessTypeChanged(p location.ProcessType) {
	l.emit(Event{Type: TypeProcess, Process: p.String()})
}

func (l *Listener) OnLocationChanged(s location.Sample) {
	l.emit(Event{Type: TypeLocation, Location: &s, Source: s.Source})
}

func (l *Listener) OnLocationFailed(r location.FailReason) {
	l.emit(Event{Type: TypeFailed, Reason: r.String()})
}

func (l *Listener) OnPermissionGranted(alreadyHad bool) {
	l.emit(Event{Type: TypeGranted, Granted: &alreadyHad})
}

func (l *Listener) OnStatusChanged(src location.Source, status int, extras map[string]string) {
	l.emit(Event{Type: TypeStatus, Source: src, Status: &status, Extras: extras})
}

func (l *Listener) OnProviderEnabled(src location.Source) {
	l.emit(Event{Type: TypeEnabled, Source: src})
}

func (l *Listener) OnProviderDisabled(src location.Source) {
	l.emit(Event{Type: TypeDisabled, Source: src})
}
