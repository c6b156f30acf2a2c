package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSample_Sufficient(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	period := 5 * time.Minute

	tests := []struct {
		name   string
		sample *Sample
		want   bool
	}{
		{"nil", nil, false},
		{"fresh and accurate", &Sample{Time: now.Add(-time.Minute), Accuracy: 3}, true},
		{"exactly at the limits", &Sample{Time: now.Add(-period), Accuracy: 5}, true},
		{"too old", &Sample{Time: now.Add(-period - time.Second), Accuracy: 1}, false},
		{"too coarse", &Sample{Time: now, Accuracy: 5.1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sample.Sufficient(now, period, 5))
		})
	}
}

func TestSample_DistanceTo(t *testing.T) {
	toronto := Sample{Latitude: 43.6532, Longitude: -79.3832}
	montreal := Sample{Latitude: 45.5017, Longitude: -73.5673}

	assert.InDelta(t, 504000, toronto.DistanceTo(montreal), 5000)
	assert.Zero(t, toronto.DistanceTo(toronto))
}

func TestFailReason_String(t *testing.T) {
	assert.Equal(t, "timeout", FailTimeout.String())
	assert.Equal(t, "permission_denied", FailPermissionDenied.String())
	assert.Equal(t, "fail(42)", FailReason(42).String())
	assert.True(t, FailFusedConfigMissing.IsConfigError())
	assert.False(t, FailTimeout.IsConfigError())
}

func TestProcessFor(t *testing.T) {
	assert.Equal(t, FromGPS, ProcessFor(SourceGPS))
	assert.Equal(t, FromNetwork, ProcessFor(SourceNetwork))
	assert.Equal(t, FromFused, ProcessFor(SourceFused))
	assert.Equal(t, FromCustom, ProcessFor("beacon"))
}

type counting struct {
	NopListener
	changed int
	failed  []FailReason
}

func (c *counting) OnLocationChanged(Sample)       { c.changed++ }
func (c *counting) OnLocationFailed(r FailReason) { c.failed = append(c.failed, r) }

func TestMulti_FansOutInOrder(t *testing.T) {
	a, b := &counting{}, &counting{}
	l := Multi(a, nil, b)

	l.OnLocationChanged(Sample{})
	l.OnLocationFailed(FailTimeout)
	l.OnProviderEnabled(SourceGPS)

	assert.Equal(t, 1, a.changed)
	assert.Equal(t, 1, b.changed)
	assert.Equal(t, []FailReason{FailTimeout}, b.failed)
}
