package location

import "fmt"

// ProcessType is the acquisition phase currently running.
type ProcessType int

const (
	AskingPermissions ProcessType = iota + 1
	FromFused
	FromGPS
	FromNetwork
	FromCustom
)

func (p ProcessType) String() string {
	switch p {
	case AskingPermissions:
		return "asking_permissions"
	case FromFused:
		return "fused"
	case FromGPS:
		return "gps"
	case FromNetwork:
		return "network"
	case FromCustom:
		return "custom"
	default:
		return fmt.Sprintf("process(%d)", int(p))
	}
}

// ProcessFor maps a raw source to the phase that reads it.
func ProcessFor(src Source) ProcessType {
	switch src {
	case SourceGPS:
		return FromGPS
	case SourceNetwork:
		return FromNetwork
	case SourceFused:
		return FromFused
	default:
		return FromCustom
	}
}

// FailReason is the terminal outcome of a session that produced no location.
type FailReason int

const (
	FailUnknown                FailReason = -1
	FailTimeout                FailReason = 1
	FailPermissionDenied       FailReason = 2
	FailNetworkNotAvailable    FailReason = 3
	FailFusedNotAvailable      FailReason = 4
	FailSettingsDialog         FailReason = 6
	FailSettingsDenied         FailReason = 7
	FailHostDetached           FailReason = 8
	FailHostWrongType          FailReason = 9
	FailSatelliteConfigMissing FailReason = 10
	FailFusedConfigMissing     FailReason = 11
)

var failNames = map[FailReason]string{
	FailUnknown:                "unknown",
	FailTimeout:                "timeout",
	FailPermissionDenied:       "permission_denied",
	FailNetworkNotAvailable:    "network_not_available",
	FailFusedNotAvailable:      "fused_not_available",
	FailSettingsDialog:         "settings_dialog",
	FailSettingsDenied:         "settings_denied",
	FailHostDetached:           "host_detached",
	FailHostWrongType:          "host_wrong_type",
	FailSatelliteConfigMissing: "satellite_config_missing",
	FailFusedConfigMissing:     "fused_config_missing",
}

func (r FailReason) String() string {
	if s, ok := failNames[r]; ok {
		return s
	}
	return fmt.Sprintf("fail(%d)", int(r))
}

// IsConfigError reports whether r points at a misconfigured request rather
// than the environment.
func (r FailReason) IsConfigError() bool {
	return r == FailSatelliteConfigMissing || r == FailFusedConfigMissing
}
