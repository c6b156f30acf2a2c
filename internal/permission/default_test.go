package permission_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/fake"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/permission"
)

type outcome struct{ granted, denied int }

func (o *outcome) OnPermissionsGranted() { o.granted++ }
func (o *outcome) OnPermissionsDenied()  { o.denied++ }

type gate struct {
	provider *permission.Default
	platform *fake.PermissionPlatform
	renderer *fake.Renderer
	activity *fake.Activity
	ref      *host.Ref
	result   *outcome
}

func newGate(t *testing.T, withRationale bool) *gate {
	t.Helper()
	g := &gate{
		platform: fake.NewPermissionPlatform(),
		renderer: &fake.Renderer{},
		activity: &fake.Activity{},
		result:   &outcome{},
	}
	var rationale dialog.Provider
	if withRationale {
		rationale = dialog.NewSimpleMessage("Please provide GPS permissions", g.renderer)
	}
	p, err := permission.NewDefault(permission.LocationPermissions, rationale, g.platform, nil)
	require.NoError(t, err)
	g.provider = p
	g.ref = host.ForActivity(g.activity)
	p.Bind(g.ref, g.result)
	return g
}

func TestNewDefault_RequiresPermissions(t *testing.T) {
	_, err := permission.NewDefault(nil, nil, fake.NewPermissionPlatform(), nil)
	assert.ErrorIs(t, err, permission.ErrNoPermissions)
}

func TestDefault_HasPermission(t *testing.T) {
	g := newGate(t, false)
	assert.False(t, g.provider.HasPermission())

	g.platform.Granted[permission.CoarseLocation] = true
	assert.False(t, g.provider.HasPermission())

	g.platform.Granted[permission.FineLocation] = true
	assert.True(t, g.provider.HasPermission())

	g.ref.Release()
	assert.False(t, g.provider.HasPermission())
}

func TestDefault_RequestWithoutHostReturnsFalse(t *testing.T) {
	g := newGate(t, true)
	g.ref.Detach()

	assert.False(t, g.provider.RequestPermissions())
	assert.Empty(t, g.platform.Requests)
	assert.Zero(t, g.result.denied, "caller reports the denial")
}

func TestDefault_RequestsDirectlyWhenNoRationaleNeeded(t *testing.T) {
	g := newGate(t, true)

	require.True(t, g.provider.RequestPermissions())
	require.Len(t, g.platform.Requests, 1)
	assert.Equal(t, host.RequestRuntimePermission, g.platform.Requests[0].Code)
	assert.Equal(t, permission.LocationPermissions, g.platform.Requests[0].Names)
	assert.Empty(t, g.renderer.Dialogs)
}

func TestDefault_RationaleAcceptedThenRequest(t *testing.T) {
	g := newGate(t, true)
	g.platform.Rationale[permission.FineLocation] = true

	require.True(t, g.provider.RequestPermissions())
	dlg := g.renderer.Last()
	require.NotNil(t, dlg)
	assert.True(t, dlg.Showing)
	assert.Empty(t, g.platform.Requests)

	dlg.Positive()
	assert.Len(t, g.platform.Requests, 1)
}

func TestDefault_RationaleDeclinedDenies(t *testing.T) {
	g := newGate(t, true)
	g.platform.Rationale[permission.CoarseLocation] = true

	require.True(t, g.provider.RequestPermissions())
	g.renderer.Last().Negative()

	assert.Equal(t, 1, g.result.denied)
	assert.Empty(t, g.platform.Requests)
}

func TestDefault_RationaleSkippedWithoutDialogProvider(t *testing.T) {
	g := newGate(t, false)
	g.platform.Rationale[permission.CoarseLocation] = true

	require.True(t, g.provider.RequestPermissions())
	assert.Len(t, g.platform.Requests, 1)
}

func TestDefault_PlatformErrorDenies(t *testing.T) {
	g := newGate(t, false)
	g.platform.Err = errors.New("already asking")

	require.True(t, g.provider.RequestPermissions())
	assert.Equal(t, 1, g.result.denied)
}

func TestDefault_FragmentIsPreferredTarget(t *testing.T) {
	g := newGate(t, false)
	frag := &fake.Fragment{Parent: g.activity}
	g.ref.SetFragment(frag)

	require.True(t, g.provider.RequestPermissions())
	require.Len(t, g.platform.Requests, 1)
	assert.Same(t, frag, g.platform.Requests[0].Target)
}

func TestDefault_OnRequestPermissionsResult(t *testing.T) {
	names := permission.LocationPermissions

	tests := []struct {
		name    string
		code    host.RequestCode
		grants  []bool
		granted int
		denied  int
	}{
		{"all granted", host.RequestRuntimePermission, []bool{true, true}, 1, 0},
		{"partial grant is a denial", host.RequestRuntimePermission, []bool{true, false}, 0, 1},
		{"none granted", host.RequestRuntimePermission, []bool{false, false}, 0, 1},
		{"missing grants count as denied", host.RequestRuntimePermission, []bool{true}, 0, 1},
		{"other request code ignored", host.RequestGPSEnable, []bool{true, true}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGate(t, false)
			g.provider.OnRequestPermissionsResult(tt.code, names, tt.grants)
			assert.Equal(t, tt.granted, g.result.granted)
			assert.Equal(t, tt.denied, g.result.denied)
		})
	}
}

func TestStub_NeverAsks(t *testing.T) {
	platform := fake.NewPermissionPlatform(permission.LocationPermissions...)
	s := permission.NewStub(platform)
	result := &outcome{}
	s.Bind(host.NewRef(), result)

	assert.True(t, s.HasPermission())
	assert.False(t, s.RequestPermissions())
	s.OnRequestPermissionsResult(host.RequestRuntimePermission, nil, nil)
	assert.Zero(t, result.granted+result.denied)
	assert.Empty(t, platform.Requests)

	delete(platform.Granted, permission.FineLocation)
	assert.False(t, s.HasPermission())
}
