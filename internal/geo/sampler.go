package geo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/common"
	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// State is the sampler lifecycle state.
type State int

// Sampler states.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

// Defaults for the position watch.
const (
	defaultMaxStaleness = 1500 * time.Millisecond
	defaultWatchTimeout = 8 * time.Second

	// minSpeedDelta is the shortest elapsed interval between fixes that
	// still yields a trustworthy derived speed; anything faster is noise.
	minSpeedDelta = 800 * time.Millisecond

	// maxConsecutiveErrors is the failure budget before the sampler
	// stops itself rather than retrying forever.
	maxConsecutiveErrors = 3
)

// Config holds construction options for the Sampler.
type Config struct {
	// Enabled gates the whole subsystem; Start is a no-op when false.
	Enabled bool
	// MaxStaleness rejects cached fixes older than this.
	MaxStaleness time.Duration
	// Timeout bounds a single position request.
	Timeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// DefaultConfig returns the default sampler configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxStaleness: defaultMaxStaleness,
		Timeout:      defaultWatchTimeout,
	}
}

// Sampler owns the device-location subscription, derives speed, adapts
// sampling cadence, and emits immutable context frames.
type Sampler struct {
	position   service.PositionSource
	visibility service.VisibilitySource
	battery    service.BatterySource       // optional, may be nil
	prefs      service.PreferencesProvider // optional, may be nil
	weather    service.WeatherProvider     // optional, may be nil
	cfg        Config
	clock      func() time.Time

	mu             sync.Mutex
	state          State
	watch          service.WatchHandle
	unsubVis       func()
	unsubBatt      func()
	lastFix        *model.GeoFix
	lastEmit       time.Time
	errCount       int
	visible        bool
	saver          bool
	listeners      map[int]func(model.ContextFrame)
	nextListenerID int
}

// NewSampler creates a sampler over the given collaborators. battery,
// prefs and weather may be nil; their absence never blocks startup.
func NewSampler(position service.PositionSource, visibility service.VisibilitySource, battery service.BatterySource, prefs service.PreferencesProvider, weather service.WeatherProvider, cfg Config) *Sampler {
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = defaultMaxStaleness
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWatchTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sampler{
		position:   position,
		visibility: visibility,
		battery:    battery,
		prefs:      prefs,
		weather:    weather,
		cfg:        cfg,
		clock:      clock,
		visible:    true,
		listeners:  make(map[int]func(model.ContextFrame)),
	}
}

// State returns the current lifecycle state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// On registers a frame listener and returns an unsubscribe function.
func (s *Sampler) On(fn func(model.ContextFrame)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Start verifies support and permission, then registers the continuous
// watch plus visibility and battery listeners. It is a no-op when the
// subsystem is disabled or already running.
func (s *Sampler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		slog.Debug("Sampler disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	if s.position == nil || !s.position.Supported() {
		s.resetToStopped()
		return common.ErrUnsupported
	}
	if s.position.PermissionDenied(ctx) {
		s.resetToStopped()
		return common.ErrPermissionDenied
	}

	handle, err := s.position.Watch(s.handleFix, s.handleError, service.WatchOptions{
		HighAccuracy: true,
		MaxStaleness: s.cfg.MaxStaleness,
		Timeout:      s.cfg.Timeout,
	})
	if err != nil {
		s.resetToStopped()
		return fmt.Errorf("failed to start position watch: %w", err)
	}

	s.mu.Lock()
	s.watch = handle
	s.state = StateRunning
	if s.visibility != nil {
		s.visible = s.visibility.Visible()
		s.unsubVis = s.visibility.OnChange(s.onVisibility)
	}
	if s.battery != nil {
		if status, ok := s.battery.Status(); ok {
			s.saver = status.Saver()
		}
		s.unsubBatt = s.battery.OnChange(s.onBattery)
	}
	s.mu.Unlock()

	slog.Info("Sampler started",
		"max_staleness", s.cfg.MaxStaleness,
		"timeout", s.cfg.Timeout)
	return nil
}

// Stop cancels the watch, removes all listeners, and resets internal
// counters. Safe to call when not running, any number of times.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sampler) stopLocked() {
	if s.watch != nil {
		s.watch.Clear()
		s.watch = nil
	}
	if s.unsubVis != nil {
		s.unsubVis()
		s.unsubVis = nil
	}
	if s.unsubBatt != nil {
		s.unsubBatt()
		s.unsubBatt = nil
	}
	s.state = StateStopped
	s.errCount = 0
	s.lastFix = nil
	s.lastEmit = time.Time{}
}

func (s *Sampler) resetToStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *Sampler) onVisibility(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

func (s *Sampler) onBattery(status service.BatteryStatus) {
	s.mu.Lock()
	s.saver = status.Saver()
	s.mu.Unlock()
}

// handleFix processes one raw position update: resets the error counter,
// rounds coordinates, derives speed, and emits a frame when the adaptive
// interval has elapsed.
func (s *Sampler) handleFix(raw model.GeoFix) {
	s.mu.Lock()

	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}

	s.errCount = 0

	now := s.clock()
	if !raw.Timestamp.IsZero() && now.Sub(raw.Timestamp) > s.cfg.MaxStaleness {
		// Cached fix slipped past the watch options; not an error.
		s.mu.Unlock()
		return
	}

	fix := raw
	fix.Latitude = model.RoundCoord(fix.Latitude)
	fix.Longitude = model.RoundCoord(fix.Longitude)

	if _, ok := fix.Speed(); !ok {
		if derived, ok := s.deriveSpeedLocked(fix); ok {
			fix.SpeedKph = &derived
		} else {
			fix.SpeedKph = nil
		}
	}

	s.lastFix = &fix

	interval := SampleInterval(fix.SpeedKph, s.visible, s.saver)
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < interval {
		// Too soon; the fix still updated speed estimation state.
		s.mu.Unlock()
		return
	}
	s.lastEmit = now

	frame := model.ContextFrame{
		CreatedAt: now,
		LocalTime: now.Format(time.RFC3339),
		Fix:       &fix,
	}
	if s.prefs != nil {
		frame.Preferences = s.prefs.Preferences()
	}
	if s.weather != nil {
		frame.Alerts = s.weather.Alerts()
	}

	listeners := make([]func(model.ContextFrame), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		notifyFrame(fn, frame)
	}
}

// deriveSpeedLocked estimates speed from the distance to the previous fix.
// Requires s.mu held. Intervals under minSpeedDelta are too noisy to trust.
func (s *Sampler) deriveSpeedLocked(fix model.GeoFix) (float64, bool) {
	if s.lastFix == nil {
		return 0, false
	}
	elapsed := fix.Timestamp.Sub(s.lastFix.Timestamp)
	if elapsed < minSpeedDelta {
		return 0, false
	}
	meters := DistanceMeters(s.lastFix.Latitude, s.lastFix.Longitude, fix.Latitude, fix.Longitude)
	kph := (meters / 1000) / elapsed.Hours()
	return kph, true
}

// handleError counts consecutive positioning failures and stops the
// sampler once the budget is exhausted.
func (s *Sampler) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}

	s.errCount++
	slog.Warn("Position update failed",
		"error", err,
		"consecutive", s.errCount)

	if common.IsTerminal(err) || s.errCount >= maxConsecutiveErrors {
		slog.Error("Stopping sampler after repeated positioning failures",
			"consecutive", s.errCount,
			"error", err)
		s.stopLocked()
	}
}

func notifyFrame(fn func(model.ContextFrame), frame model.ContextFrame) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Frame listener panicked", "panic", r)
		}
	}()
	fn(frame)
}
