// Package sim provides simulated collaborators so the copilot engine can
// run end to end without device hardware: a synthetic drive, a recorded
// track replayer, and fixed-value visibility/battery/preference/weather
// sources.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// driveTargets are the speed plateaus the simulated vehicle wanders
// between, in km/h: parked, crawl, city, road, highway.
var driveTargets = []float64{0, 10, 45, 60, 95}

// Drive is a seeded synthetic trip implementing service.PositionSource.
// The vehicle random-walks between speed plateaus and advances along a
// drifting heading.
type Drive struct {
	Interval time.Duration // fix cadence; defaults to 1 s

	seed     int64
	startLat float64
	startLon float64
}

// NewDrive creates a simulated drive starting at the given coordinates.
func NewDrive(seed int64, lat, lon float64) *Drive {
	return &Drive{
		Interval: time.Second,
		seed:     seed,
		startLat: lat,
		startLon: lon,
	}
}

// Supported always reports true.
func (d *Drive) Supported() bool { return true }

// PermissionDenied always reports false.
func (d *Drive) PermissionDenied(_ context.Context) bool { return false }

// Watch starts the simulation loop. Fixes are pushed until the returned
// handle is cleared.
func (d *Drive) Watch(onFix func(model.GeoFix), _ func(error), _ service.WatchOptions) (service.WatchHandle, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}

	h := &stopHandle{done: make(chan struct{})}
	rng := rand.New(rand.NewSource(d.seed))

	go func() {
		lat := d.startLat
		lon := d.startLon
		heading := rng.Float64() * 360
		speed := 0.0
		target := driveTargets[rng.Intn(len(driveTargets))]

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case now := <-ticker.C:
				// Occasionally pick a new plateau, then ease toward it.
				if rng.Float64() < 0.05 {
					target = driveTargets[rng.Intn(len(driveTargets))]
				}
				speed += (target - speed) * 0.3
				heading += (rng.Float64() - 0.5) * 10

				dt := interval.Hours()
				distKm := speed * dt
				rad := heading * math.Pi / 180
				lat += distKm / 111.0 * math.Cos(rad)
				lon += distKm / 111.0 * math.Sin(rad)

				s := speed
				hd := heading
				fix := model.NewGeoFix(now, lat, lon)
				fix.SpeedKph = &s
				fix.HeadingDeg = &hd
				onFix(fix)
			}
		}
	}()

	return h, nil
}

type stopHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *stopHandle) Clear() {
	h.once.Do(func() { close(h.done) })
}
