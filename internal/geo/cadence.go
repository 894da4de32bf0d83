package geo

import "time"

// Sampling intervals by motion tier.
const (
	FastInterval   = 1 * time.Second
	CruiseInterval = 5 * time.Second
	IdleInterval   = 15 * time.Second
)

// Speed thresholds separating the tiers, in km/h.
const (
	cruiseThresholdKph = 8.0
	fastThresholdKph   = 70.0
)

// SampleInterval selects the emission interval for the current conditions.
// A hidden surface or an active battery saver forces the idle interval
// regardless of speed. speedKph is nil when no speed is known.
func SampleInterval(speedKph *float64, visible, batterySaver bool) time.Duration {
	if !visible || batterySaver {
		return IdleInterval
	}
	if speedKph == nil {
		return IdleInterval
	}
	switch {
	case *speedKph > fastThresholdKph:
		return FastInterval
	case *speedKph > cruiseThresholdKph:
		return CruiseInterval
	default:
		return IdleInterval
	}
}
