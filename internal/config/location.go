// Package config holds the per-request configuration of an acquisition
// session and the file configuration of the geofix command.
//
// A Location is built once before a session starts and treated as
// read-only afterwards. Use Clone to derive variants.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/permission"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Location configures one acquisition session. A nil Fused disables the
// vendor service; a nil Satellite leaves the raw sources unconfigured.
type Location struct {
	KeepTracking bool
	Permission   Permission
	Fused        *Fused
	Satellite    *Satellite
}

// Permission configures the permission gate.
type Permission struct {
	Provider permission.Provider
}

// Priority trades accuracy against power for fused requests.
type Priority int

const (
	PriorityHighAccuracy  Priority = 100
	PriorityBalancedPower Priority = 102
	PriorityLowPower      Priority = 104
	PriorityNoPower       Priority = 105
)

func (p Priority) String() string {
	switch p {
	case PriorityHighAccuracy:
		return "high_accuracy"
	case PriorityBalancedPower:
		return "balanced_power"
	case PriorityLowPower:
		return "low_power"
	case PriorityNoPower:
		return "no_power"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority is the inverse of Priority.String.
func ParsePriority(s string) (Priority, error) {
	for _, p := range []Priority{PriorityHighAccuracy, PriorityBalancedPower, PriorityLowPower, PriorityNoPower} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, invalid("unknown priority %q", s)
}

// Request is what a fused service is asked to deliver.
type Request struct {
	Priority        Priority
	Interval        time.Duration
	FastestInterval time.Duration
}

// Fused configures the vendor fused-location service.
type Fused struct {
	Request                 Request
	FallbackToSatellite     bool
	AskForService           bool
	AskForSettings          bool
	FailOnSettingsSuspended bool
	IgnoreLastKnown         bool
	WaitPeriod              time.Duration
}

// Satellite configures the raw GPS and network sources.
type Satellite struct {
	RequiredTimeInterval     time.Duration
	RequiredDistanceInterval float64
	AcceptableAccuracy       float64
	AcceptableTimePeriod     time.Duration
	GPSWaitPeriod            time.Duration
	NetworkWaitPeriod        time.Duration
	// GPSDialog asks the user to turn GPS on. Without one the user is
	// never asked.
	GPSDialog dialog.Provider
}

func (s *Satellite) AskForEnableGPS() bool { return s != nil && s.GPSDialog != nil }

func (l *Location) Validate() error {
	if l == nil {
		return invalid("configuration is nil")
	}
	if l.Permission.Provider == nil {
		return invalid("permission provider is required")
	}
	if l.Fused != nil {
		if err := l.Fused.Validate(); err != nil {
			return err
		}
	}
	if l.Satellite != nil {
		if err := l.Satellite.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fused) Validate() error {
	switch {
	case f.WaitPeriod < 0:
		return invalid("waitPeriod cannot be set to negative value")
	case f.Request.Interval < 0:
		return invalid("interval cannot be set to negative value")
	case f.Request.FastestInterval < 0:
		return invalid("fastestInterval cannot be set to negative value")
	}
	return nil
}

func (s *Satellite) Validate() error {
	switch {
	case s.RequiredTimeInterval < 0:
		return invalid("requiredTimeInterval cannot be set to negative value")
	case s.RequiredDistanceInterval < 0:
		return invalid("requiredDistanceInterval cannot be set to negative value")
	case s.AcceptableAccuracy < 0:
		return invalid("acceptableAccuracy cannot be set to negative value")
	case s.AcceptableTimePeriod < 0:
		return invalid("acceptableTimePeriod cannot be set to negative value")
	case s.GPSWaitPeriod < 0, s.NetworkWaitPeriod < 0:
		return invalid("waitPeriod cannot be set to negative value")
	}
	return nil
}

// Clone returns a deep copy. Dialog and permission providers are shared.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	if l.Fused != nil {
		f := *l.Fused
		out.Fused = &f
	}
	if l.Satellite != nil {
		s := *l.Satellite
		out.Satellite = &s
	}
	return &out
}

// WithKeepTracking returns a clone with KeepTracking set.
func (l *Location) WithKeepTracking(keep bool) *Location {
	out := l.Clone()
	out.KeepTracking = keep
	return out
}

// WithoutFused returns a clone that only uses raw sources.
func (l *Location) WithoutFused() *Location {
	out := l.Clone()
	out.Fused = nil
	return out
}
