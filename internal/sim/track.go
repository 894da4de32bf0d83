package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// TrackPoint is one recorded sample in a newline-delimited JSON track file.
type TrackPoint struct {
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	SpeedKph *float64  `json:"speed_kph,omitempty"`
}

// LoadTrack parses a newline-delimited JSON track. Blank lines and
// #-comments are skipped; points must be in chronological order.
func LoadTrack(r io.Reader) ([]TrackPoint, error) {
	var points []TrackPoint

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var p TrackPoint
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("track line %d: %w", lineNo, err)
		}
		if len(points) > 0 && p.Time.Before(points[len(points)-1].Time) {
			return nil, fmt.Errorf("track line %d: points out of chronological order", lineNo)
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("track contains no points")
	}
	return points, nil
}

// Replay plays a recorded track back as a position source, preserving the
// recorded inter-fix gaps divided by Speedup.
type Replay struct {
	// Speedup compresses recorded time; 1 is real time.
	Speedup float64
	// OnProgress, when set, is called after each delivered fix with the
	// 1-based index and the total point count.
	OnProgress func(delivered, total int)

	points []TrackPoint
}

// NewReplay creates a replay source over the given points.
func NewReplay(points []TrackPoint) *Replay {
	return &Replay{Speedup: 1, points: points}
}

// Len returns the number of points in the track.
func (r *Replay) Len() int { return len(r.points) }

// Supported reports whether the track has any points.
func (r *Replay) Supported() bool { return len(r.points) > 0 }

// PermissionDenied always reports false.
func (r *Replay) PermissionDenied(_ context.Context) bool { return false }

// Watch plays the track until exhaustion or until the handle is cleared.
// Fix timestamps are rewritten to delivery time so staleness checks in
// the sampler see fresh data.
func (r *Replay) Watch(onFix func(model.GeoFix), _ func(error), _ service.WatchOptions) (service.WatchHandle, error) {
	speedup := r.Speedup
	if speedup <= 0 {
		speedup = 1
	}

	h := &stopHandle{done: make(chan struct{})}

	go func() {
		for i, p := range r.points {
			if i > 0 {
				gap := p.Time.Sub(r.points[i-1].Time)
				wait := time.Duration(float64(gap) / speedup)
				select {
				case <-h.done:
					return
				case <-time.After(wait):
				}
			}

			fix := model.NewGeoFix(time.Now(), p.Lat, p.Lon)
			fix.SpeedKph = p.SpeedKph
			onFix(fix)

			if r.OnProgress != nil {
				r.OnProgress(i+1, len(r.points))
			}
		}
	}()

	return h, nil
}
