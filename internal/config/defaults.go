package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/permission"
)

const (
	DefaultWaitPeriod          = 20 * time.Second
	DefaultTimePeriod          = 5 * time.Minute
	DefaultLocationInterval    = 5 * time.Minute
	DefaultFastestInterval     = time.Minute
	DefaultDistanceInterval    = 0.0
	DefaultMinAccuracy         = 5.0
	DefaultPriority            = PriorityBalancedPower
	DefaultGPSMessage          = "Please turn on your GPS"
	DefaultPermissionMessage   = "Please provide GPS permissions"
	defaultKeepTracking        = false
	defaultFallbackToSatellite = true
	defaultAskForService       = false
	defaultAskForSettings      = true
	defaultFailOnSuspended     = false
	defaultIgnoreLastKnown     = false
)

// DefaultRequest is the fused request used when none is configured.
func DefaultRequest() Request {
	return Request{
		Priority:        DefaultPriority,
		Interval:        DefaultLocationInterval,
		FastestInterval: DefaultFastestInterval,
	}
}

// DefaultFused returns the vendor service policy with every default applied.
func DefaultFused() *Fused {
	return &Fused{
		Request:                 DefaultRequest(),
		FallbackToSatellite:     defaultFallbackToSatellite,
		AskForService:           defaultAskForService,
		AskForSettings:          defaultAskForSettings,
		FailOnSettingsSuspended: defaultFailOnSuspended,
		IgnoreLastKnown:         defaultIgnoreLastKnown,
		WaitPeriod:              DefaultWaitPeriod,
	}
}

// DefaultSatellite returns the raw source policy with every default applied
// and no GPS prompt.
func DefaultSatellite() *Satellite {
	return &Satellite{
		RequiredTimeInterval:     DefaultLocationInterval,
		RequiredDistanceInterval: DefaultDistanceInterval,
		AcceptableAccuracy:       DefaultMinAccuracy,
		AcceptableTimePeriod:     DefaultTimePeriod,
		GPSWaitPeriod:            DefaultWaitPeriod,
		NetworkWaitPeriod:        DefaultWaitPeriod,
	}
}

// Default asks the user for everything: permissions with a rationale, the
// vendor service settings, and GPS. Empty messages fall back to the
// defaults.
func Default(rationaleMsg, gpsMsg string, renderer dialog.Renderer, platform permission.Platform, logger *zap.Logger) (*Location, error) {
	if rationaleMsg == "" {
		rationaleMsg = DefaultPermissionMessage
	}
	if gpsMsg == "" {
		gpsMsg = DefaultGPSMessage
	}
	gate, err := permission.NewDefault(permission.LocationPermissions,
		dialog.NewSimpleMessage(rationaleMsg, renderer), platform, logger)
	if err != nil {
		return nil, err
	}

	sat := DefaultSatellite()
	sat.GPSDialog = dialog.NewSimpleMessage(gpsMsg, renderer)

	l := &Location{
		KeepTracking: defaultKeepTracking,
		Permission:   Permission{Provider: gate},
		Fused:        DefaultFused(),
		Satellite:    sat,
	}
	return l, l.Validate()
}

// Silent never interacts with the user. Sessions fail quietly when
// permissions or sources are missing.
func Silent(keepTracking bool, platform permission.Platform) *Location {
	fused := DefaultFused()
	fused.AskForSettings = false
	return &Location{
		KeepTracking: keepTracking,
		Permission:   Permission{Provider: permission.NewStub(platform)},
		Fused:        fused,
		Satellite:    DefaultSatellite(),
	}
}
