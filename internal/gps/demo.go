package gps

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Demo generates simulated fixes driving in a circle around a point.
type Demo struct {
	mu        sync.Mutex
	t         float64
	centerLat float64
	centerLon float64
	now       func() time.Time
}

// NewDemo circles lat/lon. Zero coordinates default to Toronto.
func NewDemo(lat, lon float64) *Demo {
	if lat == 0 && lon == 0 {
		lat, lon = 43.6532, -79.3832
	}
	return &Demo{centerLat: lat, centerLon: lon, now: time.Now}
}

func (d *Demo) Name() string   { return "Demo GPS (Simulated)" }
func (d *Demo) Connect() error { return nil }
func (d *Demo) Close() error   { return nil }

func (d *Demo) Read() (*Data, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += 0.1

	const radius = 0.005 // ~500m

	return &Data{
		Valid:      true,
		Latitude:   d.centerLat + radius*math.Sin(d.t*0.1),
		Longitude:  d.centerLon + radius*math.Cos(d.t*0.1),
		Speed:      50 + 30*math.Sin(d.t*0.3) + rand.Float64()*5,
		Heading:    math.Mod(d.t*10, 360),
		Altitude:   76,
		Satellites: 12,
		FixQuality: 1,
		HDOP:       0.8,
		Time:       d.now().UTC(),
	}, nil
}
