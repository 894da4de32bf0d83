// Package service defines the contracts between the copilot engine and its
// collaborators: persistence, positioning, visibility, battery, preferences
// and weather.
package service

import (
	"context"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
)

// Storage is the key-value persistence layer. Values are opaque strings;
// the engine stores serialized JSON under fixed keys.
type Storage interface {
	// Get returns the value for key, or common.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes or replaces the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes a key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Migrate(ctx context.Context) error
	Close() error
}

// WatchOptions tunes a continuous position watch.
type WatchOptions struct {
	// HighAccuracy requests the most precise positioning available.
	HighAccuracy bool
	// MaxStaleness rejects cached fixes older than this.
	MaxStaleness time.Duration
	// Timeout bounds how long a single fix request may take; expiry is
	// reported through the error callback.
	Timeout time.Duration
}

// WatchHandle cancels a running position watch.
type WatchHandle interface {
	Clear()
}

// PositionSource is the platform positioning collaborator.
type PositionSource interface {
	// Supported reports whether positioning is available at all.
	Supported() bool
	// PermissionDenied probes for a prior explicit denial. Sources that
	// cannot answer return false; the watch itself will surface errors.
	PermissionDenied(ctx context.Context) bool
	// Watch starts a continuous watch, pushing fixes to onFix and
	// failures to onErr until the handle is cleared.
	Watch(onFix func(model.GeoFix), onErr func(error), opts WatchOptions) (WatchHandle, error)
}

// VisibilitySource reports whether the app surface is currently visible.
// OnChange registers a listener and returns an unsubscribe function.
type VisibilitySource interface {
	Visible() bool
	OnChange(fn func(visible bool)) func()
}

// BatteryStatus is one reading from the battery collaborator.
type BatteryStatus struct {
	// Level is the charge fraction in [0, 1].
	Level float64
	// Remaining is the estimated discharge time; zero when unknown.
	Remaining time.Duration
}

// Saver reports whether the reading should force power-saving behavior:
// under 5% charge or under 10 minutes of runtime left.
func (b BatteryStatus) Saver() bool {
	if b.Level > 0 && b.Level < 0.05 {
		return true
	}
	return b.Remaining > 0 && b.Remaining < 10*time.Minute
}

// BatterySource is the optional battery collaborator. Absence must not
// break startup; callers treat a nil source as "no battery data".
type BatterySource interface {
	Status() (BatteryStatus, bool)
	OnChange(fn func(BatteryStatus)) func()
}

// PreferencesProvider returns the latest known user preferences snapshot,
// or nil when no user is authenticated.
type PreferencesProvider interface {
	Preferences() *model.Preferences
}

// WeatherProvider returns the current weather alerts known to the external
// polling collaborator. May return nil when no data is available.
type WeatherProvider interface {
	Alerts() []model.WeatherAlert
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
