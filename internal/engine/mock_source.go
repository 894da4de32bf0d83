package engine

import (
	"sync"

	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// MockFrameSource is a test implementation of FrameSource that lets tests
// push frames by hand.
type MockFrameSource struct {
	mu        sync.Mutex
	listeners map[int]func(model.ContextFrame)
	nextID    int
}

// NewMockFrameSource creates a new mock frame source.
func NewMockFrameSource() *MockFrameSource {
	return &MockFrameSource{
		listeners: make(map[int]func(model.ContextFrame)),
	}
}

// On registers a listener and returns an unsubscribe function.
func (m *MockFrameSource) On(fn func(model.ContextFrame)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Emit delivers a frame to every registered listener, in subscription order.
func (m *MockFrameSource) Emit(frame model.ContextFrame) {
	m.mu.Lock()
	listeners := make([]func(model.ContextFrame), 0, len(m.listeners))
	for i := 0; i < m.nextID; i++ {
		if fn, ok := m.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

// ListenerCount reports how many listeners are currently subscribed.
func (m *MockFrameSource) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// MockVisibility is a fixed-value visibility source for tests.
type MockVisibility struct {
	VisibleFlag bool
}

// Visible returns the configured flag.
func (m *MockVisibility) Visible() bool { return m.VisibleFlag }

// OnChange is a no-op registration; the flag never changes on its own.
func (m *MockVisibility) OnChange(func(bool)) func() { return func() {} }

var _ service.VisibilitySource = (*MockVisibility)(nil)
