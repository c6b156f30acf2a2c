// Package gps reads fixes from satellite receivers: NMEA 0183 devices on a
// serial port and a simulated receiver for demos.
package gps

import (
	"time"

	"github.com/shaunagostinho/geofix/internal/location"
)

// Receiver is the interface for satellite data sources.
type Receiver interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the latest fix. May block briefly.
	Read() (*Data, error)
}

// Data holds a single receiver fix.
type Data struct {
	Valid      bool      `json:"valid"`      // Fix is valid
	Latitude   float64   `json:"latitude"`   // Decimal degrees
	Longitude  float64   `json:"longitude"`  // Decimal degrees
	Speed      float64   `json:"speed"`      // km/h
	Heading    float64   `json:"heading"`    // Degrees true
	Altitude   float64   `json:"altitude"`   // Meters
	Satellites int       `json:"satellites"` // Sats in use
	FixQuality int       `json:"fixQuality"` // 0=none, 1=GPS, 2=DGPS
	HDOP       float64   `json:"hdop"`       // Horizontal dilution
	Time       time.Time `json:"time"`       // UTC, zero until the receiver reports a date
}

// UERE is the assumed user equivalent range error of a consumer receiver in
// meters. Accuracy is estimated as HDOP times UERE.
const UERE = 5.0

// Status codes passed to OnStatusChanged.
const (
	StatusOutOfService = 0
	StatusUnavailable  = 1
	StatusAvailable    = 2
)

// Status maps the fix quality to a provider status code.
func (d *Data) Status() int {
	switch {
	case d == nil:
		return StatusOutOfService
	case d.Valid && d.FixQuality > 0:
		return StatusAvailable
	default:
		return StatusUnavailable
	}
}

// Sample converts a valid fix. now stamps fixes that carry no date.
func (d *Data) Sample(now time.Time) (location.Sample, bool) {
	if d == nil || !d.Valid {
		return location.Sample{}, false
	}
	hdop := d.HDOP
	if hdop <= 0 {
		hdop = 1
	}
	ts := d.Time
	if ts.IsZero() {
		ts = now
	}
	return location.Sample{
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Accuracy:  hdop * UERE,
		Time:      ts,
		Source:    location.SourceGPS,
		Altitude:  d.Altitude,
		Speed:     d.Speed,
		Heading:   d.Heading,
	}, true
}
