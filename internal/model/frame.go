package model

import "time"

// AlertSeverity grades a weather alert.
type AlertSeverity string

// Recognized alert severities. SeveritySevere is the only one the engine
// acts on.
const (
	SeverityMinor  AlertSeverity = "minor"
	SeveritySevere AlertSeverity = "severe"
)

// WeatherAlert is the slice of an external weather feed the engine reads.
type WeatherAlert struct {
	Severity AlertSeverity
	Headline string
}

// Preferences is a snapshot of user settings taken at frame creation.
// Nil on a frame means the user is not authenticated.
type Preferences struct {
	UserID        string
	ScenicDensity ScenicDensity
	AvoidHighways bool
}

// ContextFrame is the unit passed through the pipeline: one positioning
// sample plus whatever environmental context was known at that instant.
// Frames are not retained; only the latest matters downstream.
type ContextFrame struct {
	CreatedAt time.Time
	LocalTime string // ISO 8601 local-time string

	Fix         *GeoFix // nil before the first fix
	Preferences *Preferences
	Alerts      []WeatherAlert
}

// SpeedKph returns the frame's speed, or 0 and false when unknown.
func (c ContextFrame) SpeedKph() (float64, bool) {
	if c.Fix == nil {
		return 0, false
	}
	return c.Fix.Speed()
}

// HasSevereAlert reports whether any attached alert is severe.
func (c ContextFrame) HasSevereAlert() bool {
	for _, a := range c.Alerts {
		if a.Severity == SeveritySevere {
			return true
		}
	}
	return false
}
