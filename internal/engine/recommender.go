// Package engine implements the recommender: the stateful consumer that
// filters, ranks and throttles suggestion candidates using persisted
// accept/decline feedback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/candidate"
	"github.com/wayfarerhq/wayfarer/internal/common"
	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/service"
)

// MemoryKey is the storage key holding the serialized bandit memory.
const MemoryKey = "copilot.bandit_memory"

// Throttling and ranking tuning.
const (
	// batchInterval is the global rate limit between emitted batches.
	batchInterval = 30 * time.Second
	// cooldownTTL is how long an accepted or declined suggestion id
	// stays ineligible.
	cooldownTTL = 8 * time.Minute
	// maxBatchSize caps how many suggestions one batch may carry.
	maxBatchSize = 2
	// preferenceWeight scales the learned accept-minus-decline count.
	preferenceWeight = 0.6
	// explorationNoise is the ceiling of the random tie-breaker that
	// keeps untried kinds from being starved forever.
	explorationNoise = 0.03
)

// Config holds construction options for the Recommender.
type Config struct {
	// Generate overrides the candidate generator, for tests.
	Generate Generator
	// Rand seeds the exploration noise; nil uses a time-seeded source.
	Rand *rand.Rand
	// Clock overrides time.Now for feedback timestamps; frame handling
	// always derives now from the frame itself.
	Clock func() time.Time
}

// Recommender consumes context frames and emits at most two ranked,
// safety-gated suggestions per batch. Its only persistent state is the
// bandit memory, loaded once at construction and written back after every
// mutation.
type Recommender struct {
	storage    service.Storage
	source     FrameSource
	visibility service.VisibilitySource
	generate   Generator
	rng        *rand.Rand
	clock      func() time.Time

	mu          sync.Mutex
	memory      *model.BanditMemory
	unsubscribe func()
	listeners   map[int]func([]model.Suggestion)
	nextID      int
	ctx         context.Context
}

// New creates a recommender and loads its memory from storage. A missing
// or unreadable blob falls back to an empty memory; persistence problems
// never fail construction.
func New(ctx context.Context, storage service.Storage, source FrameSource, visibility service.VisibilitySource, cfg Config) *Recommender {
	generate := cfg.Generate
	if generate == nil {
		generate = candidate.Generate
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Recommender{
		storage:    storage,
		source:     source,
		visibility: visibility,
		generate:   generate,
		rng:        rng,
		clock:      clock,
		memory:     loadMemory(ctx, storage),
		listeners:  make(map[int]func([]model.Suggestion)),
		ctx:        context.Background(),
	}
}

func loadMemory(ctx context.Context, storage service.Storage) *model.BanditMemory {
	raw, err := storage.Get(ctx, MemoryKey)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("Failed to load bandit memory, starting fresh", "error", err)
		}
		return model.NewBanditMemory()
	}

	memory, err := model.UnmarshalBanditMemory(raw)
	if err != nil {
		slog.Warn("Corrupt bandit memory, starting fresh", "error", err)
		return model.NewBanditMemory()
	}
	return memory
}

// Start subscribes to the frame source. Idempotent.
func (r *Recommender) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubscribe != nil {
		return
	}
	r.ctx = ctx
	r.unsubscribe = r.source.On(r.handleFrame)
	slog.Info("Recommender started")
}

// Stop detaches from the frame source. Safe to call repeatedly.
func (r *Recommender) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// On registers a suggestion-batch listener and returns an unsubscribe
// function.
func (r *Recommender) On(fn func([]model.Suggestion)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// Accept records positive feedback for a suggestion and cools its id down.
func (r *Recommender) Accept(ctx context.Context, id string, kind model.SuggestionKind) error {
	return r.feedback(ctx, id, kind, true)
}

// Decline records negative feedback for a suggestion and cools its id down.
func (r *Recommender) Decline(ctx context.Context, id string, kind model.SuggestionKind) error {
	return r.feedback(ctx, id, kind, false)
}

func (r *Recommender) feedback(ctx context.Context, id string, kind model.SuggestionKind, accepted bool) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown suggestion kind %q", common.ErrInvalidConfig, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if accepted {
		r.memory.RecordAccept(kind)
	} else {
		r.memory.RecordDecline(kind)
	}
	r.memory.SetCooldown(id, r.clock().Add(cooldownTTL))
	r.persistLocked(ctx)
	return nil
}

// Memory returns a snapshot copy of the bandit memory for inspection.
func (r *Recommender) Memory() model.BanditMemory {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := model.BanditMemory{
		Accepts:   make(map[model.SuggestionKind]int, len(r.memory.Accepts)),
		Declines:  make(map[model.SuggestionKind]int, len(r.memory.Declines)),
		Cooldowns: make(map[string]time.Time, len(r.memory.Cooldowns)),
		LastBatch: r.memory.LastBatch,
	}
	for k, v := range r.memory.Accepts {
		snapshot.Accepts[k] = v
	}
	for k, v := range r.memory.Declines {
		snapshot.Declines[k] = v
	}
	for k, v := range r.memory.Cooldowns {
		snapshot.Cooldowns[k] = v
	}
	return snapshot
}

// handleFrame is the synchronous pipeline: rate limit, generate, filter,
// rank, persist, emit. The memory snapshot it reads stays unchanged until
// it writes back because the whole handler runs under one lock hold.
func (r *Recommender) handleFrame(frame model.ContextFrame) {
	r.mu.Lock()

	now := frame.CreatedAt
	if !r.memory.LastBatch.IsZero() && now.Sub(r.memory.LastBatch) < batchInterval {
		r.mu.Unlock()
		return
	}

	visible := true
	if r.visibility != nil {
		visible = r.visibility.Visible()
	}

	candidates := r.generate(frame, visible)

	survivors := make(model.RankedSuggestions, 0, len(candidates))
	for _, c := range candidates {
		if r.memory.OnCooldown(c.ID, now) {
			continue
		}
		if !Gate(c, frame, visible) {
			continue
		}
		if c.Expired(now) {
			continue
		}
		survivors = append(survivors, model.RankedSuggestion{
			Suggestion: c,
			Score:      r.scoreLocked(c.Kind),
		})
	}

	if len(survivors) == 0 {
		r.mu.Unlock()
		return
	}

	batch := survivors.TopN(maxBatchSize)
	r.memory.LastBatch = now
	r.memory.PruneCooldowns(now)
	r.persistLocked(r.ctx)

	listeners := make([]func([]model.Suggestion), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	slog.Debug("Emitting suggestion batch",
		"count", len(batch),
		"first_kind", batch[0].Kind)

	for _, fn := range listeners {
		notifyBatch(fn, batch)
	}
}

// scoreLocked computes the ranking score for a kind: a neutral baseline,
// the learned preference, and a small noise term so untried kinds are not
// deterministically starved. Requires r.mu held.
func (r *Recommender) scoreLocked(kind model.SuggestionKind) float64 {
	return 1 +
		float64(r.memory.Preference(kind))*preferenceWeight +
		r.rng.Float64()*explorationNoise
}

// persistLocked writes the memory back to storage. Failures are logged
// and otherwise ignored; in-memory state stays authoritative for the rest
// of the session. Requires r.mu held.
func (r *Recommender) persistLocked(ctx context.Context) {
	raw, err := r.memory.Marshal()
	if err != nil {
		slog.Warn("Failed to serialize bandit memory", "error", err)
		return
	}
	if err := r.storage.Set(ctx, MemoryKey, raw); err != nil {
		slog.Warn("Failed to persist bandit memory", "error", err)
	}
}

// Gate is the pure safety predicate: a suggestion with no gate always
// passes; otherwise the visibility requirement and any declared speed
// bounds are checked against the frame.
func Gate(s model.Suggestion, frame model.ContextFrame, visible bool) bool {
	if s.Safety == nil {
		return true
	}
	if s.Safety.VisibleOnly && !visible {
		return false
	}

	speed, hasSpeed := frame.SpeedKph()
	if s.Safety.MinSpeedKph != nil && (!hasSpeed || speed < *s.Safety.MinSpeedKph) {
		return false
	}
	if s.Safety.MaxSpeedKph != nil && hasSpeed && speed > *s.Safety.MaxSpeedKph {
		return false
	}
	return true
}

func notifyBatch(fn func([]model.Suggestion), batch []model.Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Suggestion listener panicked", "panic", r)
		}
	}()
	fn(batch)
}
