// Package provider implements the location providers an acquisition session
// runs: raw satellite and network sources, the vendor fused service, and
// the dispatcher that chooses between them.
//
// Providers are driven from a single loop. None of them are safe for
// concurrent use, and every collaborator callback must be delivered on the
// same loop that calls Get.
package provider

import (
	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
)

// Provider is one way of acquiring a location.
type Provider interface {
	// Configure attaches the provider to a session. It is called before Get
	// and again whenever a dispatcher hands the session over.
	Configure(b Binding)
	Binding() Binding

	Get()
	// Cancel aborts the running session. It releases every registration
	// and timer and may be called any number of times.
	Cancel()

	OnPause()
	OnResume()
	OnDestroy()
	OnActivityResult(code host.RequestCode, result host.Result, data any)

	IsWaiting() bool
	IsDialogShowing() bool
}

// Binding is what a provider shares with the session it runs in. Providers
// hold their own copy; a dispatcher passes its copy on to the provider it
// activates.
type Binding struct {
	Host     *host.Ref
	Config   *config.Location
	Listener location.Listener
	Logger   *zap.Logger
}

func (b Binding) normalize() Binding {
	if b.Listener == nil {
		b.Listener = location.NopListener{}
	}
	if b.Logger == nil {
		b.Logger = zap.NewNop()
	}
	if b.Config == nil {
		b.Config = &config.Location{}
	}
	return b
}

// keepTracking is false for an unconfigured binding.
func (b Binding) keepTracking() bool { return b.Config != nil && b.Config.KeepTracking }
