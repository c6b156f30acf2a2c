package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/task"
)

// FusedSwitchTask is the id of the timer bounding the fused provider.
const FusedSwitchTask = "fusedSwitchTask"

// ServiceStatus is the install state of the vendor fused service.
type ServiceStatus int

const (
	ServiceAvailable             ServiceStatus = 0
	ServiceMissing               ServiceStatus = 1
	ServiceVersionUpdateRequired ServiceStatus = 2
	ServiceDisabled              ServiceStatus = 3
	ServiceInvalid               ServiceStatus = 9
	ServiceUpdating              ServiceStatus = 18
)

func (s ServiceStatus) String() string {
	switch s {
	case ServiceAvailable:
		return "available"
	case ServiceMissing:
		return "missing"
	case ServiceVersionUpdateRequired:
		return "version_update_required"
	case ServiceDisabled:
		return "disabled"
	case ServiceInvalid:
		return "invalid"
	case ServiceUpdating:
		return "updating"
	default:
		return fmt.Sprintf("service(%d)", int(s))
	}
}

// Availability reports whether the vendor fused service can be used.
type Availability interface {
	Status() ServiceStatus
	IsUserResolvable(s ServiceStatus) bool
	// ErrorDialog returns a dialog that lets the user fix s, or nil. The
	// dialog reports a fix as an activity result for code and calls
	// onCancel when the user backs out.
	ErrorDialog(a host.Activity, s ServiceStatus, code host.RequestCode, onCancel func()) dialog.Dialog
}

// Factory builds the providers a Dispatcher switches between.
type Factory interface {
	NewFused(fallback FallbackListener) Provider
	NewSatellite() Provider
}

// DefaultFactory builds the stock providers.
type DefaultFactory struct {
	Satellite SatellitePlatform
	Fused     FusedClient
	Scheduler task.Scheduler
}

func (f DefaultFactory) NewFused(fallback FallbackListener) Provider {
	return NewFused(f.Fused, fallback)
}

func (f DefaultFactory) NewSatellite() Provider {
	return NewSatellite(f.Satellite, f.Scheduler)
}

// Dispatcher tries the vendor fused service first and switches to the raw
// sources when the service is missing, fails, or does not answer within
// its wait period.
type Dispatcher struct {
	factory      Factory
	availability Availability
	binding      Binding
	switchT      *task.Task

	active      Provider
	activeFused bool

	errDialog dialog.Dialog
	errDone   *bool
}

// NewDispatcher creates a dispatcher. A nil availability means the fused
// service is never available.
func NewDispatcher(f Factory, av Availability, sched task.Scheduler) *Dispatcher {
	d := &Dispatcher{
		factory:      f,
		availability: av,
		binding:      Binding{}.normalize(),
	}
	d.switchT = task.New(FusedSwitchTask, d, sched)
	return d
}

func (d *Dispatcher) Configure(b Binding) {
	d.binding = b.normalize()
	if d.active != nil {
		d.active.Configure(d.binding)
	}
}

func (d *Dispatcher) Binding() Binding { return d.binding }

// ActiveProvider returns the provider currently running, or nil before the
// first Get.
func (d *Dispatcher) ActiveProvider() Provider { return d.active }

func (d *Dispatcher) IsWaiting() bool {
	return d.active != nil && d.active.IsWaiting()
}

func (d *Dispatcher) IsDialogShowing() bool {
	if d.errDialog != nil && d.errDialog.IsShowing() {
		return true
	}
	return d.active != nil && d.active.IsDialogShowing()
}

func (d *Dispatcher) Get() {
	if d.binding.Config.Fused == nil {
		d.binding.Logger.Info("fused service not configured, using raw sources")
		d.continueWithSatellite()
		return
	}
	d.checkAvailability(true)
}

func (d *Dispatcher) status() ServiceStatus {
	if d.availability == nil {
		return ServiceMissing
	}
	return d.availability.Status()
}

func (d *Dispatcher) checkAvailability(ask bool) {
	status := d.status()
	if status == ServiceAvailable {
		d.binding.Logger.Info("fused service is available")
		d.continueWithFused()
		return
	}

	d.binding.Logger.Info("fused service is not available", zap.Stringer("status", status))
	if !ask {
		// Already asked once; the user could not fix it.
		d.continueWithSatellite()
		return
	}
	if d.binding.Config.Fused.AskForService && d.availability != nil && d.availability.IsUserResolvable(status) {
		d.resolve(status)
		return
	}
	d.continueWithSatellite()
}

func (d *Dispatcher) resolve(status ServiceStatus) {
	a := d.binding.Host.Activity()
	if a == nil {
		d.binding.Logger.Info("fused service error can not be shown without an activity")
		d.continueWithSatellite()
		return
	}

	done := new(bool)
	next := func() {
		if *done {
			return
		}
		*done = true
		d.continueWithSatellite()
	}

	dlg := d.availability.ErrorDialog(a, status, host.RequestFusedAvailability, next)
	if dlg == nil {
		d.continueWithSatellite()
		return
	}
	switch status {
	case ServiceInvalid, ServiceUpdating:
		// These dialogs close without a cancel event.
		dlg.OnDismiss(next)
	}
	d.errDialog = dlg
	d.errDone = done
	dlg.Show()
}

func (d *Dispatcher) dropErrorDialog() {
	if d.errDialog == nil {
		return
	}
	*d.errDone = true
	dlg := d.errDialog
	d.errDialog = nil
	d.errDone = nil
	dlg.Dismiss()
}

func (d *Dispatcher) continueWithFused() {
	d.setActive(d.factory.NewFused(d), true)
	// A timer left over from an earlier session must not shorten this wait.
	d.switchT.Stop()
	d.switchT.Delayed(d.binding.Config.Fused.WaitPeriod)
	d.active.Get()
}

func (d *Dispatcher) continueWithSatellite() {
	d.binding.Logger.Info("getting location from raw sources")
	d.setActive(d.factory.NewSatellite(), false)
	d.active.Get()
}

func (d *Dispatcher) setActive(p Provider, fused bool) {
	if d.active != nil {
		d.active.OnDestroy()
	}
	d.active = p
	d.activeFused = fused
	p.Configure(d.binding)
}

// RunScheduledTask handles the fused wait period.
func (d *Dispatcher) RunScheduledTask(id string) {
	if id != FusedSwitchTask || !d.activeFused || !d.active.IsWaiting() {
		return
	}
	d.binding.Logger.Info("no location from fused service in time, switching to raw sources")
	d.Cancel()
	d.continueWithSatellite()
}

// OnFallback is called by the fused provider when it gives up early.
func (d *Dispatcher) OnFallback() {
	d.Cancel()
	d.continueWithSatellite()
}

func (d *Dispatcher) OnActivityResult(code host.RequestCode, result host.Result, data any) {
	if code == host.RequestFusedAvailability {
		pending := d.errDone != nil && !*d.errDone
		d.dropErrorDialog()
		if !pending {
			d.binding.Logger.Debug("ignoring service fix result, session already handed off")
			return
		}
		d.checkAvailability(false)
		return
	}
	if d.active != nil {
		d.active.OnActivityResult(code, result, data)
	}
}

func (d *Dispatcher) OnPause() {
	if d.active != nil {
		d.active.OnPause()
	}
	d.switchT.Pause()
}

func (d *Dispatcher) OnResume() {
	if d.active != nil {
		d.active.OnResume()
	}
	d.switchT.Resume()
}

func (d *Dispatcher) Cancel() {
	if d.active != nil {
		d.active.Cancel()
	}
	d.switchT.Stop()
	d.dropErrorDialog()
}

func (d *Dispatcher) OnDestroy() {
	if d.active != nil {
		d.active.OnDestroy()
	}
	d.switchT.Stop()
	d.dropErrorDialog()
}
