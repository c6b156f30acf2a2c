// Package permission decides whether the permissions a session needs are
// held and, when they are not, negotiates them with the user.
package permission

import (
	"errors"

	"github.com/shaunagostinho/geofix/internal/host"
)

// Android names, kept so configuration files stay portable across hosts.
const (
	CoarseLocation = "android.permission.ACCESS_COARSE_LOCATION"
	FineLocation   = "android.permission.ACCESS_FINE_LOCATION"
)

// LocationPermissions is the default required set.
var LocationPermissions = []string{CoarseLocation, FineLocation}

var ErrNoPermissions = errors.New("permission: required permissions can not be empty")

// Listener is told how a request ended.
type Listener interface {
	OnPermissionsGranted()
	OnPermissionsDenied()
}

// Platform is the host's permission system.
type Platform interface {
	IsGranted(name string) bool
	ShouldShowRationale(t host.Target, name string) bool
	// Request asks the user for names. The answer arrives later through
	// the manager's OnRequestPermissionsResult with the same code.
	Request(t host.Target, names []string, code host.RequestCode) error
}

// Provider is the permission gate a manager drives.
type Provider interface {
	Bind(ref *host.Ref, l Listener)
	HasPermission() bool
	// RequestPermissions starts asking. It returns false when asking is not
	// possible at all, which the caller treats as a denial.
	RequestPermissions() bool
	OnRequestPermissionsResult(code host.RequestCode, names []string, grants []bool)
}

func hasAll(p Platform, ref *host.Ref, required []string) bool {
	if p == nil || !ref.Valid() {
		return false
	}
	for _, name := range required {
		if !p.IsGranted(name) {
			return false
		}
	}
	return true
}
