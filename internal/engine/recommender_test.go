package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerhq/wayfarer/internal/model"
	"github.com/wayfarerhq/wayfarer/internal/testutil"
)

var baseTime = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

func driveFrame(at time.Time, speedKph float64) model.ContextFrame {
	fix := model.NewGeoFix(at, 32.0853, 34.7818)
	fix.SpeedKph = &speedKph
	return model.ContextFrame{
		CreatedAt: at,
		LocalTime: at.Format(time.RFC3339),
		Fix:       &fix,
	}
}

type recorder struct {
	batches [][]model.Suggestion
}

func (r *recorder) record(batch []model.Suggestion) {
	r.batches = append(r.batches, batch)
}

func newTestRecommender(t *testing.T) (*Recommender, *MockFrameSource, *recorder) {
	t.Helper()

	store := testutil.NewStorage(t)
	source := NewMockFrameSource()
	rec := New(context.Background(), store, source, &MockVisibility{VisibleFlag: true}, Config{
		Rand:  rand.New(rand.NewSource(1)),
		Clock: func() time.Time { return baseTime },
	})
	rec.Start(context.Background())
	t.Cleanup(rec.Stop)

	sink := &recorder{}
	rec.On(sink.record)
	return rec, source, sink
}

func TestRecommender_EmitsRankedBatch(t *testing.T) {
	_, source, sink := newTestRecommender(t)

	source.Emit(driveFrame(baseTime, 60))

	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.NotEmpty(t, batch)
	assert.LessOrEqual(t, len(batch), 2)
	for _, s := range batch {
		assert.NotEmpty(t, s.ID)
		assert.True(t, s.Kind.Valid())
	}
}

func TestRecommender_GlobalRateLimit(t *testing.T) {
	_, source, sink := newTestRecommender(t)

	source.Emit(driveFrame(baseTime, 60))
	source.Emit(driveFrame(baseTime.Add(10*time.Second), 60))
	assert.Len(t, sink.batches, 1, "second frame within 30 s must be skipped")

	source.Emit(driveFrame(baseTime.Add(31*time.Second), 60))
	assert.Len(t, sink.batches, 2)
}

func TestRecommender_NoEmptyBatches(t *testing.T) {
	_, source, sink := newTestRecommender(t)

	source.Emit(driveFrame(baseTime, 3)) // stationary: no candidates
	assert.Empty(t, sink.batches)
}

func TestRecommender_HiddenSuppressesEverything(t *testing.T) {
	store := testutil.NewStorage(t)
	source := NewMockFrameSource()
	rec := New(context.Background(), store, source, &MockVisibility{VisibleFlag: false}, Config{
		Rand: rand.New(rand.NewSource(1)),
	})
	rec.Start(context.Background())
	defer rec.Stop()

	sink := &recorder{}
	rec.On(sink.record)

	source.Emit(driveFrame(baseTime, 60))
	assert.Empty(t, sink.batches, "suggestions must never appear while hidden")
}

func TestRecommender_AcceptCoolsDownID(t *testing.T) {
	rec, source, sink := newTestRecommender(t)

	source.Emit(driveFrame(baseTime, 60))
	require.Len(t, sink.batches, 1)

	var restID string
	for _, s := range sink.batches[0] {
		if s.Kind == model.KindRest {
			restID = s.ID
		}
	}
	require.NotEmpty(t, restID, "driving frame should surface a rest suggestion")

	require.NoError(t, rec.Accept(context.Background(), restID, model.KindRest))

	// 31 s later the rest rule regenerates the same bucketed id, which is
	// still cooling down; only other kinds may surface.
	source.Emit(driveFrame(baseTime.Add(31*time.Second), 60))
	require.Len(t, sink.batches, 2)
	for _, s := range sink.batches[1] {
		assert.NotEqual(t, restID, s.ID, "cooled id must not be re-emitted")
	}

	// After the 8 minute cooldown the id is eligible again.
	source.Emit(driveFrame(baseTime.Add(9*time.Minute), 60))
	require.Len(t, sink.batches, 3)
	var found bool
	for _, s := range sink.batches[2] {
		if s.ID == restID {
			found = true
		}
	}
	assert.True(t, found, "id should return once its cooldown has elapsed")
}

func TestRecommender_AcceptedKindOutranksUntouched(t *testing.T) {
	rec, source, sink := newTestRecommender(t)

	// Teach the model a strong preference for rest using ids that do not
	// collide with the candidate buckets.
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Accept(context.Background(), "feedback-rest", model.KindRest))
	}

	source.Emit(driveFrame(baseTime, 60))
	require.Len(t, sink.batches, 1)
	require.NotEmpty(t, sink.batches[0])
	assert.Equal(t, model.KindRest, sink.batches[0][0].Kind,
		"a 1.8 preference margin dwarfs the 0.03 exploration noise")
}

func TestRecommender_DeclinedKindSinks(t *testing.T) {
	rec, source, sink := newTestRecommender(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Decline(context.Background(), "feedback-rest", model.KindRest))
	}

	source.Emit(driveFrame(baseTime, 60))
	require.Len(t, sink.batches, 1)
	require.NotEmpty(t, sink.batches[0])
	assert.NotEqual(t, model.KindRest, sink.batches[0][0].Kind)
}

func TestRecommender_BatchCappedAtTwo(t *testing.T) {
	store := testutil.NewStorage(t)
	source := NewMockFrameSource()

	three := func(frame model.ContextFrame, _ bool) []model.Suggestion {
		expires := frame.CreatedAt.Add(time.Hour)
		var out []model.Suggestion
		for _, kind := range []model.SuggestionKind{model.KindFuel, model.KindFood, model.KindRest} {
			out = append(out, model.Suggestion{
				ID:        model.BucketID(kind, frame.CreatedAt, time.Hour),
				Kind:      kind,
				CreatedAt: frame.CreatedAt,
				Title:     string(kind),
				Reason:    "test",
				ExpiresAt: &expires,
			})
		}
		return out
	}

	rec := New(context.Background(), store, source, &MockVisibility{VisibleFlag: true}, Config{
		Generate: three,
		Rand:     rand.New(rand.NewSource(1)),
	})
	rec.Start(context.Background())
	defer rec.Stop()

	sink := &recorder{}
	rec.On(sink.record)

	source.Emit(driveFrame(baseTime, 60))
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 2)
}

func TestRecommender_DropsExpiredCandidates(t *testing.T) {
	store := testutil.NewStorage(t)
	source := NewMockFrameSource()

	stale := func(frame model.ContextFrame, _ bool) []model.Suggestion {
		expired := frame.CreatedAt.Add(-time.Second)
		return []model.Suggestion{{
			ID:        "stale-1",
			Kind:      model.KindScenic,
			CreatedAt: frame.CreatedAt,
			ExpiresAt: &expired,
		}}
	}

	rec := New(context.Background(), store, source, &MockVisibility{VisibleFlag: true}, Config{
		Generate: stale,
		Rand:     rand.New(rand.NewSource(1)),
	})
	rec.Start(context.Background())
	defer rec.Stop()

	sink := &recorder{}
	rec.On(sink.record)

	source.Emit(driveFrame(baseTime, 60))
	assert.Empty(t, sink.batches)
}

func TestRecommender_MemoryPersistsAcrossRestarts(t *testing.T) {
	store := testutil.NewStorage(t)
	source := NewMockFrameSource()
	ctx := context.Background()

	rec := New(ctx, store, source, &MockVisibility{VisibleFlag: true}, Config{})
	require.NoError(t, rec.Accept(ctx, "rest-1", model.KindRest))
	require.NoError(t, rec.Accept(ctx, "rest-2", model.KindRest))
	require.NoError(t, rec.Decline(ctx, "scenic-1", model.KindScenic))

	// A fresh recommender over the same storage sees the learned state.
	rec2 := New(ctx, store, source, &MockVisibility{VisibleFlag: true}, Config{})
	memory := rec2.Memory()
	assert.Equal(t, 2, memory.Accepts[model.KindRest])
	assert.Equal(t, 1, memory.Declines[model.KindScenic])
	assert.True(t, memory.Cooldowns["rest-1"].After(time.Now()))
}

func TestRecommender_CorruptMemoryStartsFresh(t *testing.T) {
	store := testutil.NewStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, MemoryKey, "{{{not json"))

	rec := New(ctx, store, NewMockFrameSource(), &MockVisibility{VisibleFlag: true}, Config{})
	memory := rec.Memory()
	assert.Empty(t, memory.Accepts)
	assert.Empty(t, memory.Declines)
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}
func (failingStorage) Set(context.Context, string, string) error {
	return errors.New("disk on fire")
}
func (failingStorage) Delete(context.Context, string) error { return errors.New("disk on fire") }
func (failingStorage) Migrate(context.Context) error        { return errors.New("disk on fire") }
func (failingStorage) Close() error                         { return nil }

func TestRecommender_SurvivesPersistenceFailures(t *testing.T) {
	ctx := context.Background()
	rec := New(ctx, failingStorage{}, NewMockFrameSource(), &MockVisibility{VisibleFlag: true}, Config{})

	// Save failures are logged, not surfaced; in-memory state still works.
	require.NoError(t, rec.Accept(ctx, "rest-1", model.KindRest))
	assert.Equal(t, 1, rec.Memory().Accepts[model.KindRest])
}

func TestRecommender_RejectsUnknownKind(t *testing.T) {
	rec, _, _ := newTestRecommender(t)
	err := rec.Accept(context.Background(), "x", model.SuggestionKind("nap"))
	assert.Error(t, err)
}

func TestRecommender_ListenerPanicIsolated(t *testing.T) {
	rec, source, _ := newTestRecommender(t)

	var got int
	rec.On(func([]model.Suggestion) { panic("bad subscriber") })
	rec.On(func([]model.Suggestion) { got++ })

	source.Emit(driveFrame(baseTime, 60))
	assert.Equal(t, 1, got)
}

func TestRecommender_StopDetaches(t *testing.T) {
	rec, source, sink := newTestRecommender(t)

	rec.Stop()
	assert.Zero(t, source.ListenerCount())

	source.Emit(driveFrame(baseTime, 60))
	assert.Empty(t, sink.batches)
}

func TestGate(t *testing.T) {
	minSpeed := 30.0
	maxSpeed := 50.0

	tests := []struct {
		name    string
		safety  *model.SafetyGate
		speed   *float64
		visible bool
		want    bool
	}{
		{"no gate always passes", nil, nil, false, true},
		{"visible only, visible", &model.SafetyGate{VisibleOnly: true}, nil, true, true},
		{"visible only, hidden", &model.SafetyGate{VisibleOnly: true}, nil, false, false},
		{"min speed met", &model.SafetyGate{MinSpeedKph: &minSpeed}, f(40), true, true},
		{"min speed not met", &model.SafetyGate{MinSpeedKph: &minSpeed}, f(20), true, false},
		{"min speed unknown speed", &model.SafetyGate{MinSpeedKph: &minSpeed}, nil, true, false},
		{"max speed met", &model.SafetyGate{MaxSpeedKph: &maxSpeed}, f(40), true, true},
		{"max speed exceeded", &model.SafetyGate{MaxSpeedKph: &maxSpeed}, f(60), true, false},
		{"max speed unknown speed", &model.SafetyGate{MaxSpeedKph: &maxSpeed}, nil, true, true},
		{"band inside", &model.SafetyGate{MinSpeedKph: &minSpeed, MaxSpeedKph: &maxSpeed}, f(40), true, true},
		{"band below", &model.SafetyGate{MinSpeedKph: &minSpeed, MaxSpeedKph: &maxSpeed}, f(10), true, false},
		{"band above", &model.SafetyGate{MinSpeedKph: &minSpeed, MaxSpeedKph: &maxSpeed}, f(90), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := model.ContextFrame{CreatedAt: baseTime}
			if tt.speed != nil {
				fix := model.NewGeoFix(baseTime, 32, 34)
				fix.SpeedKph = tt.speed
				frame.Fix = &fix
			}
			s := model.Suggestion{ID: "x", Kind: model.KindRest, Safety: tt.safety}
			assert.Equal(t, tt.want, Gate(s, frame, tt.visible))
		})
	}
}

func f(v float64) *float64 { return &v }
