// Package stream relays ranked suggestion batches to the presentation
// layer, holding at most one active suggestion at a time.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/model"
)

// Stream decouples the recommender from its consumers. Subscribers are
// notified with the active suggestion, or nil when none is active.
type Stream struct {
	clock func() time.Time

	mu     sync.Mutex
	active *model.Suggestion
	subs   map[int]func(*model.Suggestion)
	nextID int
}

// New creates an empty stream. clock may be nil to use time.Now.
func New(clock func() time.Time) *Stream {
	if clock == nil {
		clock = time.Now
	}
	return &Stream{
		clock: clock,
		subs:  make(map[int]func(*model.Suggestion)),
	}
}

// Active returns the current active suggestion, or nil.
func (s *Stream) Active() *model.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Push takes an already-ranked batch, drops expired entries, and promotes
// the best survivor. Re-pushing the active suggestion is a no-op so
// consumers never re-render redundantly; an empty or fully-expired batch
// clears the active suggestion.
func (s *Stream) Push(suggestions []model.Suggestion) {
	s.mu.Lock()

	now := s.clock()
	var best *model.Suggestion
	for i := range suggestions {
		if suggestions[i].Expired(now) {
			continue
		}
		c := suggestions[i]
		best = &c
		break
	}

	if best == nil {
		s.active = nil
		subs := s.snapshotLocked()
		s.mu.Unlock()
		notifyAll(subs, nil)
		return
	}

	if s.active != nil && s.active.ID == best.ID {
		s.mu.Unlock()
		return
	}

	s.active = best
	subs := s.snapshotLocked()
	s.mu.Unlock()
	notifyAll(subs, best)
}

// Clear drops the active suggestion and notifies subscribers with nil.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.active = nil
	subs := s.snapshotLocked()
	s.mu.Unlock()
	notifyAll(subs, nil)
}

// Subscribe registers fn and immediately invokes it with the current
// active suggestion (or nil) so new subscribers never wait for the next
// push to learn current state. Returns an unsubscribe function.
func (s *Stream) Subscribe(fn func(*model.Suggestion)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.active
	s.mu.Unlock()

	notify(fn, current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotLocked copies the subscriber set in registration order.
// Requires s.mu held.
func (s *Stream) snapshotLocked() []func(*model.Suggestion) {
	subs := make([]func(*model.Suggestion), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func notifyAll(subs []func(*model.Suggestion), active *model.Suggestion) {
	for _, fn := range subs {
		notify(fn, active)
	}
}

// notify shields the stream from subscriber panics; one failing consumer
// never prevents the others from being notified.
func notify(fn func(*model.Suggestion), active *model.Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Stream subscriber panicked", "panic", r)
		}
	}()
	fn(active)
}
