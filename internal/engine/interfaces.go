package engine

import "github.com/wayfarerhq/wayfarer/internal/model"

// FrameSource is anything that emits context frames, typically the geo
// sampler. On registers a listener and returns an unsubscribe function.
type FrameSource interface {
	On(fn func(model.ContextFrame)) func()
}

// Generator produces suggestion candidates from a frame and the current
// visibility flag. It must be pure.
type Generator func(frame model.ContextFrame, visible bool) []model.Suggestion
