package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/ledger"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

type captureSink struct {
	mu          sync.Mutex
	transitions []models.Transition
}

func (c *captureSink) Publish(_ context.Context, t models.Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transitions = append(c.transitions, t)

	return nil
}

func (c *captureSink) all() []models.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]models.Transition(nil), c.transitions...)
}

func TestEngineDowntimeAccountingEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := ledger.NewMemoryStore()
	sink := &captureSink{}

	eng := NewEngine(
		NewAggregator(30*time.Second),
		NewDetector(store),
		WithSinks(sink),
	)

	require.NoError(t, eng.Start(ctx))
	defer func() {
		require.NoError(t, eng.Stop())
	}()

	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	key := models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"}

	cycle := func(bps float64, at time.Time) {
		err := eng.ProcessCycle(ctx, []models.Sample{{
			Key:        key,
			Collector:  "fc-a",
			Bps:        bps,
			ObservedAt: at,
		}}, at)
		require.NoError(t, err)
	}

	cycle(500, t0)
	cycle(0, t0.Add(time.Minute))
	cycle(0, t0.Add(2*time.Minute))
	cycle(650, t0.Add(3*time.Minute))

	transitions := sink.all()
	require.Len(t, transitions, 2)
	assert.Equal(t, models.DirectionWentDown, transitions[0].Direction)
	assert.Equal(t, models.DirectionCameUp, transitions[1].Direction)

	window := models.TimeWindow{Start: t0, End: t0.Add(4 * time.Minute)}
	seconds, err := store.Query(ctx, key, window)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, seconds, 0.001)

	st, ok := eng.State(key)
	require.True(t, ok)
	assert.Equal(t, models.StateUp, st.State)
	assert.InDelta(t, 650.0, st.Bps, 0.001)
}

func TestEngineProcessCycleBlocksUntilApplied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := ledger.NewMemoryStore()

	eng := NewEngine(NewAggregator(30*time.Second), NewDetector(store))

	require.NoError(t, eng.Start(ctx))
	defer func() {
		require.NoError(t, eng.Stop())
	}()

	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	samples := make([]models.Sample, 0, 50)
	for i := 0; i < 50; i++ {
		samples = append(samples, models.Sample{
			Key:        models.InterfaceKey{Exporter: "10.0.0.1", Iface: string(rune('a' + i%26))},
			Collector:  "fc-a",
			Bps:        float64(i + 1),
			ObservedAt: t0,
		})
	}

	require.NoError(t, eng.ProcessCycle(ctx, samples, t0))

	// Every key must be visible as soon as ProcessCycle returns.
	assert.Len(t, eng.States(), 26)
}

func TestEngineInvariantHandlerInvoked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := ledger.NewMemoryStore()

	var (
		mu         sync.Mutex
		violations []error
	)

	eng := NewEngine(
		NewAggregator(time.Second),
		NewDetector(store),
		WithInvariantHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()

			violations = append(violations, err)
		}),
	)

	require.NoError(t, eng.Start(ctx))
	defer func() {
		require.NoError(t, eng.Stop())
	}()

	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	key := models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"}

	// Seed an open interval behind the detector's back, then drive the
	// key down. The double open is a violation and must be surfaced.
	_, err := store.OpenInterval(ctx, key, t0.Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, eng.ProcessCycle(ctx, []models.Sample{
		{Key: key, Collector: "fc-a", Bps: 100, ObservedAt: t0},
	}, t0))

	require.NoError(t, eng.ProcessCycle(ctx, []models.Sample{
		{Key: key, Collector: "fc-a", Bps: 0, ObservedAt: t0.Add(time.Minute)},
	}, t0.Add(time.Minute)))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, violations, 1)
	assert.ErrorIs(t, violations[0], ErrInvariantViolation)
}
