package permission

import "github.com/shaunagostinho/geofix/internal/host"

// Stub never asks. It suits background services that must fail quietly
// when permissions are missing.
type Stub struct {
	required []string
	platform Platform
	ref      *host.Ref
}

func NewStub(platform Platform) *Stub {
	return &Stub{required: LocationPermissions, platform: platform}
}

func (s *Stub) Bind(ref *host.Ref, _ Listener) { s.ref = ref }
func (s *Stub) HasPermission() bool            { return hasAll(s.platform, s.ref, s.required) }
func (s *Stub) RequestPermissions() bool       { return false }

func (s *Stub) OnRequestPermissionsResult(host.RequestCode, []string, []bool) {}
