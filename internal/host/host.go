// Package host describes the UI-hosting context an acquisition session is
// attached to. The core never owns a host: it keeps a Ref the UI layer
// detaches when its screen goes away.
package host

import "fmt"

// RequestCode keys the result of a sub-flow started from a host.
type RequestCode int

const (
	RequestRuntimePermission  RequestCode = 23
	RequestFusedAvailability  RequestCode = 24
	RequestGPSEnable          RequestCode = 25
	RequestSettingsResolution RequestCode = 26
)

func (c RequestCode) String() string {
	switch c {
	case RequestRuntimePermission:
		return "runtime_permission"
	case RequestFusedAvailability:
		return "fused_availability"
	case RequestGPSEnable:
		return "gps_enable"
	case RequestSettingsResolution:
		return "settings_resolution"
	default:
		return fmt.Sprintf("request(%d)", int(c))
	}
}

// Result is the outcome code a sub-flow reports back.
type Result int

const (
	ResultCanceled Result = 0
	ResultOK       Result = -1
)

// Action names a sub-flow a host knows how to start.
type Action string

const (
	ActionLocationSourceSettings Action = "location_source_settings"
	ActionSettingsResolution     Action = "settings_resolution"
	ActionFusedAvailability      Action = "fused_availability"
)

// Target can start a sub-flow and later deliver its result to the
// manager's OnActivityResult.
type Target interface {
	StartForResult(action Action, code RequestCode) error
}

// Activity is a top-level screen.
type Activity interface {
	Target
}

// Fragment is a screen section embedded in an Activity.
type Fragment interface {
	Target
	Activity() Activity
}
