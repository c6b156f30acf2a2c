// Package locator runs acquisition sessions: it checks permissions, then
// hands the session to a provider and reports back through a single
// listener.
package locator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/permission"
	"github.com/shaunagostinho/geofix/internal/provider"
	"github.com/shaunagostinho/geofix/internal/task"
)

var (
	ErrNoConfiguration = errors.New("locator: configuration is required")
	ErrNoScheduler     = errors.New("locator: a scheduler is required to build the default provider")
)

// Option customizes a Manager.
type Option func(*options)

type options struct {
	provider     provider.Provider
	logger       *zap.Logger
	satellite    provider.SatellitePlatform
	fused        provider.FusedClient
	availability provider.Availability
	sched        task.Scheduler
}

// WithProvider replaces the default dispatcher.
func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSatellitePlatform sets the raw sources the default dispatcher uses.
func WithSatellitePlatform(p provider.SatellitePlatform) Option {
	return func(o *options) { o.satellite = p }
}

// WithFusedClient sets the vendor service the default dispatcher uses.
func WithFusedClient(c provider.FusedClient) Option {
	return func(o *options) { o.fused = c }
}

// WithAvailability sets how the default dispatcher checks the vendor
// service.
func WithAvailability(a provider.Availability) Option {
	return func(o *options) { o.availability = a }
}

// WithScheduler sets the loop the default dispatcher runs its timers on.
func WithScheduler(s task.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// Manager owns one configuration, its permission gate and the active
// provider. Like the providers, it must only be called from one loop.
type Manager struct {
	cfg      *config.Location
	ref      *host.Ref
	listener location.Listener
	logger   *zap.Logger

	active      provider.Provider
	permissions permission.Provider
}

// New builds a manager for cfg. l may be nil.
func New(cfg *config.Location, ref *host.Ref, l location.Listener, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, ErrNoConfiguration
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("locator: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if l == nil {
		l = location.NopListener{}
	}

	active := o.provider
	if active == nil {
		if o.sched == nil {
			return nil, ErrNoScheduler
		}
		factory := provider.DefaultFactory{Satellite: o.satellite, Fused: o.fused, Scheduler: o.sched}
		active = provider.NewDispatcher(factory, o.availability, o.sched)
	}

	m := &Manager{
		cfg:         cfg,
		ref:         ref,
		listener:    l,
		logger:      o.logger,
		active:      active,
		permissions: cfg.Permission.Provider,
	}
	m.active.Configure(m.binding())
	m.permissions.Bind(ref, permissionResult{m})
	return m, nil
}

func (m *Manager) binding() provider.Binding {
	return provider.Binding{Host: m.ref, Config: m.cfg, Listener: m.listener, Logger: m.logger}
}

// SetLogger swaps the logger of the manager and its provider.
func (m *Manager) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	m.logger = l
	m.active.Configure(m.binding())
}

// Get starts a session. The outcome arrives on the listener.
func (m *Manager) Get() {
	if m.permissions.HasPermission() {
		m.granted(true)
		return
	}

	m.listener.OnProcessTypeChanged(location.AskingPermissions)
	if m.permissions.RequestPermissions() {
		m.logger.Debug("waiting for the permission result")
		return
	}
	m.logger.Info("could not ask for permissions")
	m.listener.OnLocationFailed(location.FailPermissionDenied)
}

func (m *Manager) granted(alreadyHad bool) {
	m.logger.Info("location permission granted", zap.Bool("already_had", alreadyHad))
	m.listener.OnPermissionGranted(alreadyHad)
	m.active.Get()
}

type permissionResult struct{ m *Manager }

func (r permissionResult) OnPermissionsGranted() { r.m.granted(false) }

func (r permissionResult) OnPermissionsDenied() {
	r.m.logger.Info("location permission denied")
	r.m.listener.OnLocationFailed(location.FailPermissionDenied)
}

func (m *Manager) OnPause()   { m.active.OnPause() }
func (m *Manager) OnResume()  { m.active.OnResume() }
func (m *Manager) OnDestroy() { m.active.OnDestroy() }

// Cancel aborts the running session. The manager can be reused.
func (m *Manager) Cancel() { m.active.Cancel() }

func (m *Manager) OnActivityResult(code host.RequestCode, result host.Result, data any) {
	m.active.OnActivityResult(code, result, data)
}

func (m *Manager) OnRequestPermissionsResult(code host.RequestCode, names []string, grants []bool) {
	m.permissions.OnRequestPermissionsResult(code, names, grants)
}

func (m *Manager) IsWaitingForLocation() bool { return m.active.IsWaiting() }
func (m *Manager) IsAnyDialogShowing() bool   { return m.active.IsDialogShowing() }

// Configuration returns the configuration the manager was built with.
func (m *Manager) Configuration() *config.Location { return m.cfg }

// ActiveProvider returns the top-level provider.
func (m *Manager) ActiveProvider() provider.Provider { return m.active }
