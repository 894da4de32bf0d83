package model

import (
	"fmt"
	"sort"
	"time"
)

// SuggestionKind is the closed set of proactive nudge categories.
type SuggestionKind string

// All suggestion kinds.
const (
	KindFuel           SuggestionKind = "fuel"
	KindFood           SuggestionKind = "food"
	KindRest           SuggestionKind = "rest"
	KindScenic         SuggestionKind = "scenic"
	KindWeatherReroute SuggestionKind = "weather_reroute"
	KindPaceAdjust     SuggestionKind = "pace_adjust"
)

// Kinds lists every suggestion kind, in a stable order.
func Kinds() []SuggestionKind {
	return []SuggestionKind{
		KindFuel, KindFood, KindRest, KindScenic, KindWeatherReroute, KindPaceAdjust,
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k SuggestionKind) Valid() bool {
	switch k {
	case KindFuel, KindFood, KindRest, KindScenic, KindWeatherReroute, KindPaceAdjust:
		return true
	}
	return false
}

// ScenicDensity controls how often scenic nudges may appear.
type ScenicDensity string

// Scenic density settings.
const (
	DensityLow    ScenicDensity = "low"
	DensityNormal ScenicDensity = "normal"
	DensityHigh   ScenicDensity = "high"
)

// Interval returns the nudge window for the density. Unknown values fall
// back to the normal interval.
func (d ScenicDensity) Interval() time.Duration {
	switch d {
	case DensityLow:
		return 30 * time.Minute
	case DensityHigh:
		return 8 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// SafetyGate is a declarative precondition a suggestion must satisfy
// against the current frame before it may be shown.
type SafetyGate struct {
	MinSpeedKph *float64
	MaxSpeedKph *float64
	VisibleOnly bool
}

// ActionType tags an accept/decline action for the external dispatcher.
type ActionType string

// Action types the dispatcher understands.
const (
	ActionFindNearby    ActionType = "find_nearby"
	ActionReroute       ActionType = "reroute"
	ActionShiftSchedule ActionType = "shift_schedule"
	ActionIgnore        ActionType = "ignore"
)

// Action describes what accepting or declining a suggestion should do.
// The payload is interpreted by the action dispatcher, not by this engine.
type Action struct {
	Type    ActionType
	Payload map[string]any
}

// Suggestion is a candidate or active nudge. Value object; never mutated
// after creation.
type Suggestion struct {
	ID        string
	Kind      SuggestionKind
	CreatedAt time.Time
	Title     string
	Reason    string

	ExpiresAt *time.Time
	Safety    *SafetyGate
	OnAccept  *Action
	OnDecline *Action
}

// Expired reports whether the suggestion's TTL has passed at now.
// Suggestions without an expiry never expire.
func (s Suggestion) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// BucketID derives a stable suggestion id from a kind and a coarse time
// bucket. Repeated generation inside one window yields the same id, which
// is what makes cooldown and dedupe checks consistent.
func BucketID(kind SuggestionKind, now time.Time, window time.Duration) string {
	return fmt.Sprintf("%s-%d", kind, now.UnixMilli()/window.Milliseconds())
}

// RankedSuggestion pairs a suggestion with its computed score.
type RankedSuggestion struct {
	Suggestion Suggestion
	Score      float64
}

// RankedSuggestions supports sorting by score, best first.
type RankedSuggestions []RankedSuggestion

// Len implements sort.Interface.
func (r RankedSuggestions) Len() int { return len(r) }

// Less implements sort.Interface; higher scores come first, ties broken by
// id for a stable order.
func (r RankedSuggestions) Less(i, j int) bool {
	if r[i].Score != r[j].Score {
		return r[i].Score > r[j].Score
	}
	return r[i].Suggestion.ID < r[j].Suggestion.ID
}

// Swap implements sort.Interface.
func (r RankedSuggestions) Swap(i, j int) { r[i], r[j] = r[j], r[i] }

// Sort orders the rankings best first.
func (r RankedSuggestions) Sort() { sort.Sort(r) }

// TopN returns the N best suggestions after sorting.
func (r RankedSuggestions) TopN(n int) []Suggestion {
	r.Sort()
	if n > len(r) {
		n = len(r)
	}
	out := make([]Suggestion, 0, n)
	for _, rs := range r[:n] {
		out = append(out, rs.Suggestion)
	}
	return out
}
