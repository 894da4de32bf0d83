// Package candidate turns a context frame into proactive suggestion
// candidates. Generation is a pure function: deterministic for identical
// inputs and idempotent within a time bucket, which is what makes
// cooldown-by-id meaningful downstream.
package candidate

import (
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
)

// Motion thresholds in km/h.
const (
	movingThresholdKph  = 8.0
	drivingThresholdKph = 40.0
	crawlThresholdKph   = 15.0
)

// Rule tuning.
const (
	weatherTTL    = 10 * time.Minute
	restTTL       = 20 * time.Minute
	paceTTL       = 10 * time.Minute
	restBucket    = 2 * time.Hour
	paceBucket    = 5 * time.Minute
	weatherBucket = 10 * time.Minute
)

// Generate evaluates every rule against the frame and returns the
// surviving candidates, at most one per rule. An absent fix yields none.
// Visibility requirements are declared on each suggestion's safety gate
// and enforced by the recommender; the flag is accepted here so callers
// can treat generation as a function of the full presentation context.
func Generate(frame model.ContextFrame, _ bool) []model.Suggestion {
	if frame.Fix == nil {
		return nil
	}

	speed, hasSpeed := frame.SpeedKph()
	moving := hasSpeed && speed > movingThresholdKph
	driving := hasSpeed && speed > drivingThresholdKph
	crawling := hasSpeed && speed < crawlThresholdKph
	severe := frame.HasSevereAlert()
	now := frame.CreatedAt

	var out []model.Suggestion

	if severe && moving {
		out = append(out, weatherReroute(now))
	}
	if driving {
		out = append(out, restStop(now))
	}
	if moving && crawling {
		out = append(out, paceAdjust(now))
	}
	if moving && !severe {
		out = append(out, scenicDetour(now, density(frame)))
	}

	return out
}

func density(frame model.ContextFrame) model.ScenicDensity {
	if frame.Preferences == nil || frame.Preferences.ScenicDensity == "" {
		return model.DensityNormal
	}
	return frame.Preferences.ScenicDensity
}

func weatherReroute(now time.Time) model.Suggestion {
	expires := now.Add(weatherTTL)
	minSpeed := 20.0
	return model.Suggestion{
		ID:        model.BucketID(model.KindWeatherReroute, now, weatherBucket),
		Kind:      model.KindWeatherReroute,
		CreatedAt: now,
		Title:     "Severe weather ahead",
		Reason:    "severe_alert_while_moving",
		ExpiresAt: &expires,
		Safety:    &model.SafetyGate{MinSpeedKph: &minSpeed, VisibleOnly: true},
		OnAccept: &model.Action{
			Type:    model.ActionReroute,
			Payload: map[string]any{"avoid": "severe_weather"},
		},
		OnDecline: &model.Action{Type: model.ActionIgnore},
	}
}

func restStop(now time.Time) model.Suggestion {
	expires := now.Add(restTTL)
	minSpeed := 30.0
	return model.Suggestion{
		ID:        model.BucketID(model.KindRest, now, restBucket),
		Kind:      model.KindRest,
		CreatedAt: now,
		Title:     "Time for a break?",
		Reason:    "sustained_driving_speed",
		ExpiresAt: &expires,
		Safety:    &model.SafetyGate{MinSpeedKph: &minSpeed, VisibleOnly: true},
		OnAccept: &model.Action{
			Type:    model.ActionFindNearby,
			Payload: map[string]any{"category": "rest_stop"},
		},
		OnDecline: &model.Action{Type: model.ActionIgnore},
	}
}

func paceAdjust(now time.Time) model.Suggestion {
	expires := now.Add(paceTTL)
	minSpeed := 5.0
	maxSpeed := 50.0
	return model.Suggestion{
		ID:        model.BucketID(model.KindPaceAdjust, now, paceBucket),
		Kind:      model.KindPaceAdjust,
		CreatedAt: now,
		Title:     "Traffic is slow",
		Reason:    "crawling_in_congestion",
		ExpiresAt: &expires,
		// The speed band makes the nudge disappear once traffic clears
		// or the vehicle is fully stopped.
		Safety: &model.SafetyGate{MinSpeedKph: &minSpeed, MaxSpeedKph: &maxSpeed, VisibleOnly: true},
		OnAccept: &model.Action{
			Type:    model.ActionShiftSchedule,
			Payload: map[string]any{"shift_minutes": 15},
		},
		OnDecline: &model.Action{Type: model.ActionIgnore},
	}
}

func scenicDetour(now time.Time, d model.ScenicDensity) model.Suggestion {
	interval := d.Interval()
	expires := now.Add(interval)
	return model.Suggestion{
		ID:        model.BucketID(model.KindScenic, now, interval),
		Kind:      model.KindScenic,
		CreatedAt: now,
		Title:     "Scenic detour nearby",
		Reason:    "moving_with_clear_weather",
		ExpiresAt: &expires,
		Safety:    &model.SafetyGate{VisibleOnly: true},
		OnAccept: &model.Action{
			Type:    model.ActionFindNearby,
			Payload: map[string]any{"category": "scenic_viewpoint"},
		},
		OnDecline: &model.Action{Type: model.ActionIgnore},
	}
}
