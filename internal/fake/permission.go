package fake

import "github.com/shaunagostinho/geofix/internal/host"

// PermissionRequest is one Request call.
type PermissionRequest struct {
	Target host.Target
	Names  []string
	Code   host.RequestCode
}

// PermissionPlatform grants what is in Granted and records requests.
type PermissionPlatform struct {
	Granted   map[string]bool
	Rationale map[string]bool
	Requests  []PermissionRequest
	Err       error
}

func NewPermissionPlatform(granted ...string) *PermissionPlatform {
	p := &PermissionPlatform{Granted: map[string]bool{}, Rationale: map[string]bool{}}
	for _, g := range granted {
		p.Granted[g] = true
	}
	return p
}

func (p *PermissionPlatform) IsGranted(name string) bool { return p.Granted[name] }

func (p *PermissionPlatform) ShouldShowRationale(_ host.Target, name string) bool {
	return p.Rationale[name]
}

func (p *PermissionPlatform) Request(t host.Target, names []string, code host.RequestCode) error {
	if p.Err != nil {
		return p.Err
	}
	p.Requests = append(p.Requests, PermissionRequest{Target: t, Names: names, Code: code})
	return nil
}
