package sim

import (
	"sync"

	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// Visibility is a settable visibility source.
type Visibility struct {
	mu        sync.Mutex
	visible   bool
	listeners map[int]func(bool)
	nextID    int
}

// NewVisibility creates a visibility source with an initial state.
func NewVisibility(visible bool) *Visibility {
	return &Visibility{
		visible:   visible,
		listeners: make(map[int]func(bool)),
	}
}

// Visible returns the current state.
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Set updates the state and notifies listeners on change.
func (v *Visibility) Set(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	listeners := make([]func(bool), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(visible)
	}
}

// OnChange registers a listener and returns an unsubscribe function.
func (v *Visibility) OnChange(fn func(bool)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.listeners[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

// Battery is a fixed battery source.
type Battery struct {
	Reading service.BatteryStatus
	Known   bool
}

// Status returns the configured reading.
func (b *Battery) Status() (service.BatteryStatus, bool) { return b.Reading, b.Known }

// OnChange is a no-op registration; the reading never changes.
func (b *Battery) OnChange(func(service.BatteryStatus)) func() { return func() {} }

// StaticPreferences serves a fixed preferences snapshot; nil models an
// unauthenticated user.
type StaticPreferences struct {
	Snapshot *model.Preferences
}

// Preferences returns the configured snapshot.
func (p *StaticPreferences) Preferences() *model.Preferences { return p.Snapshot }

// StaticWeather serves a fixed set of alerts.
type StaticWeather struct {
	Current []model.WeatherAlert
}

// Alerts returns the configured alerts.
func (w *StaticWeather) Alerts() []model.WeatherAlert { return w.Current }

var (
	_ service.PositionSource      = (*Drive)(nil)
	_ service.PositionSource      = (*Replay)(nil)
	_ service.VisibilitySource    = (*Visibility)(nil)
	_ service.BatterySource       = (*Battery)(nil)
	_ service.PreferencesProvider = (*StaticPreferences)(nil)
	_ service.WeatherProvider     = (*StaticWeather)(nil)
)
