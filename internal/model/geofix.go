// Package model defines the core value objects shared across the copilot engine.
package model

import (
	"math"
	"time"
)

// coordPrecision bounds exposed coordinates to 6 decimal places (~0.1 m).
const coordPrecision = 1e6

// GeoFix is a single positioning sample. It is immutable once created;
// producers round coordinates before constructing one.
type GeoFix struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64

	// Optional readings; nil when the platform did not report them.
	AccuracyM  *float64 // horizontal accuracy in meters
	HeadingDeg *float64 // degrees clockwise from true north
	SpeedKph   *float64 // instantaneous speed in km/h
}

// NewGeoFix builds a fix with coordinates rounded to the privacy precision.
func NewGeoFix(ts time.Time, lat, lon float64) GeoFix {
	return GeoFix{
		Timestamp: ts,
		Latitude:  RoundCoord(lat),
		Longitude: RoundCoord(lon),
	}
}

// RoundCoord rounds a coordinate to 6 decimal places.
func RoundCoord(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}

// Speed returns the reported speed and whether one is present and valid.
func (f GeoFix) Speed() (float64, bool) {
	if f.SpeedKph == nil || *f.SpeedKph < 0 || math.IsNaN(*f.SpeedKph) {
		return 0, false
	}
	return *f.SpeedKph, true
}
