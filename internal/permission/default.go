package permission

import (
	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
)

// Default asks the platform for the required permissions, showing a
// rationale dialog first when the platform says one is due.
type Default struct {
	required  []string
	rationale dialog.Provider
	platform  Platform
	logger    *zap.Logger

	ref      *host.Ref
	listener Listener
}

// NewDefault creates a gate for required. rationale may be nil, in which
// case no rationale is ever shown.
func NewDefault(required []string, rationale dialog.Provider, platform Platform, logger *zap.Logger) (*Default, error) {
	if len(required) == 0 {
		return nil, ErrNoPermissions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Default{
		required:  append([]string(nil), required...),
		rationale: rationale,
		platform:  platform,
		logger:    logger,
	}, nil
}

func (d *Default) Bind(ref *host.Ref, l Listener) {
	d.ref = ref
	d.listener = l
}

func (d *Default) Required() []string { return append([]string(nil), d.required...) }

func (d *Default) HasPermission() bool {
	if !d.ref.Valid() {
		d.logger.Warn("can not check permissions without a host context")
		return false
	}
	return hasAll(d.platform, d.ref, d.required)
}

func (d *Default) RequestPermissions() bool {
	if d.ref.Activity() == nil || d.platform == nil {
		d.logger.Info("can not ask for permissions without an activity")
		return false
	}
	if d.shouldShowRationale() {
		if dlg := d.rationale.Dialog(d.ref.Activity(), rationaleClicks{d}); dlg != nil {
			d.logger.Debug("showing permission rationale")
			dlg.Show()
			return true
		}
	}
	d.execute()
	return true
}

func (d *Default) OnRequestPermissionsResult(code host.RequestCode, names []string, grants []bool) {
	if code != host.RequestRuntimePermission {
		return
	}
	denied := false
	for i := range names {
		if i >= len(grants) || !grants[i] {
			denied = true
		}
	}
	if denied {
		d.logger.Info("user denied some of the required permissions")
		d.denied()
		return
	}
	d.logger.Info("all required permissions granted")
	if d.listener != nil {
		d.listener.OnPermissionsGranted()
	}
}

func (d *Default) shouldShowRationale() bool {
	if d.rationale == nil || d.ref.Activity() == nil {
		return false
	}
	t := d.ref.Target()
	show := false
	for _, name := range d.required {
		show = show || d.platform.ShouldShowRationale(t, name)
	}
	return show
}

func (d *Default) execute() {
	t := d.ref.Target()
	if t == nil {
		d.logger.Error("no host to request permissions from")
		d.denied()
		return
	}
	d.logger.Info("asking for runtime permissions", zap.Strings("permissions", d.required))
	if err := d.platform.Request(t, d.required, host.RequestRuntimePermission); err != nil {
		d.logger.Error("permission request failed", zap.Error(err))
		d.denied()
	}
}

func (d *Default) denied() {
	if d.listener != nil {
		d.listener.OnPermissionsDenied()
	}
}

type rationaleClicks struct{ d *Default }

func (r rationaleClicks) OnPositiveButtonClick() { r.d.execute() }

func (r rationaleClicks) OnNegativeButtonClick() {
	r.d.logger.Info("user declined the permission rationale")
	r.d.denied()
}
