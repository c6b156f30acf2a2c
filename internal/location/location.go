// Package location holds the values an acquisition session reports: the
// samples, the phase signals and the failure taxonomy.
package location

import (
	"math"
	"time"
)

// Source tags where a sample came from.
type Source string

const (
	SourceGPS     Source = "gps"
	SourceNetwork Source = "network"
	SourceFused   Source = "fused"
)

// Sample is a single position fix. It is never mutated once produced.
type Sample struct {
	Latitude  float64   `json:"latitude"`  // Decimal degrees
	Longitude float64   `json:"longitude"` // Decimal degrees
	Accuracy  float64   `json:"accuracy"`  // Meters, 68% radius
	Time      time.Time `json:"time"`
	Source    Source    `json:"source"`
	Altitude  float64   `json:"altitude,omitempty"` // Meters
	Speed     float64   `json:"speed,omitempty"`    // km/h
	Heading   float64   `json:"heading,omitempty"`  // Degrees true
}

// Sufficient reports whether s is recent and accurate enough to be used
// instead of waiting for a live fix.
func (s *Sample) Sufficient(now time.Time, acceptablePeriod time.Duration, acceptableAccuracy float64) bool {
	if s == nil {
		return false
	}
	oldest := now.Add(-acceptablePeriod)
	return !s.Time.Before(oldest) && s.Accuracy <= acceptableAccuracy
}

const earthRadiusM = 6371000.0

// DistanceTo returns the great-circle distance to o in meters.
func (s Sample) DistanceTo(o Sample) float64 {
	dLat := (o.Latitude - s.Latitude) * math.Pi / 180
	dLon := (o.Longitude - s.Longitude) * math.Pi / 180
	lat1 := s.Latitude * math.Pi / 180
	lat2 := o.Latitude * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
