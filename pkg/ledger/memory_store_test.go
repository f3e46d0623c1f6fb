package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

var memKey = models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"}

func TestMemoryStoreOpenCloseRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	opened, err := store.OpenInterval(ctx, memKey, start)
	require.NoError(t, err)
	assert.True(t, opened.Open())
	assert.Equal(t, start, opened.StartedAt)

	open, err := store.GetOpenInterval(ctx, memKey)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, opened.ID, open.ID)

	closed, err := store.CloseInterval(ctx, memKey, end)
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, end, *closed.EndedAt)

	open, err = store.GetOpenInterval(ctx, memKey)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestMemoryStoreSecondOpenRejected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.OpenInterval(ctx, memKey, time.Now())
	require.NoError(t, err)

	_, err = store.OpenInterval(ctx, memKey, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntervalAlreadyOpen)
}

func TestMemoryStoreCloseWithoutOpenRejected(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CloseInterval(context.Background(), memKey, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoOpenInterval)
}

func TestMemoryStoreQueryClipsToWindow(t *testing.T) {
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		started time.Time
		ended   *time.Time
		window  models.TimeWindow
		want    float64
	}{
		{
			name:    "fully inside window",
			started: base.Add(time.Hour),
			ended:   timePtr(base.Add(time.Hour + 10*time.Minute)),
			window:  models.TimeWindow{Start: base, End: base.Add(24 * time.Hour)},
			want:    600,
		},
		{
			name:    "straddles window start",
			started: base.Add(-5 * time.Minute),
			ended:   timePtr(base.Add(5 * time.Minute)),
			window:  models.TimeWindow{Start: base, End: base.Add(24 * time.Hour)},
			want:    300,
		},
		{
			name:    "straddles window end",
			started: base.Add(23*time.Hour + 50*time.Minute),
			ended:   timePtr(base.Add(24*time.Hour + 10*time.Minute)),
			window:  models.TimeWindow{Start: base, End: base.Add(24 * time.Hour)},
			want:    600,
		},
		{
			name:    "entirely outside window",
			started: base.Add(-2 * time.Hour),
			ended:   timePtr(base.Add(-time.Hour)),
			window:  models.TimeWindow{Start: base, End: base.Add(24 * time.Hour)},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			ctx := context.Background()

			_, err := store.OpenInterval(ctx, memKey, tt.started)
			require.NoError(t, err)

			if tt.ended != nil {
				_, err = store.CloseInterval(ctx, memKey, *tt.ended)
				require.NoError(t, err)
			}

			got, err := store.Query(ctx, memKey, tt.window)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestMemoryStoreOpenIntervalAccruesUntilNow(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	store.nowFunc = func() time.Time { return base.Add(5 * time.Minute) }

	ctx := context.Background()

	_, err := store.OpenInterval(ctx, memKey, base)
	require.NoError(t, err)

	window := models.TimeWindow{Start: base, End: base.Add(time.Hour)}

	got, err := store.Query(ctx, memKey, window)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, got, 0.001)
}

func TestMemoryStoreQueryAllSumsAcrossKeys(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	keyB := models.InterfaceKey{Exporter: "10.0.0.2", Iface: "1"}

	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.OpenInterval(ctx, memKey, base)
	require.NoError(t, err)
	_, err = store.CloseInterval(ctx, memKey, base.Add(2*time.Minute))
	require.NoError(t, err)

	_, err = store.OpenInterval(ctx, keyB, base.Add(time.Minute))
	require.NoError(t, err)
	_, err = store.CloseInterval(ctx, keyB, base.Add(6*time.Minute))
	require.NoError(t, err)

	window := models.TimeWindow{Start: base, End: base.Add(time.Hour)}

	got, err := store.QueryAll(ctx, window)
	require.NoError(t, err)
	assert.InDelta(t, 420.0, got, 0.001)
}

func TestMemoryStoreIntervalsSortedAndFiltered(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Hour)

		_, err := store.OpenInterval(ctx, memKey, start)
		require.NoError(t, err)
		_, err = store.CloseInterval(ctx, memKey, start.Add(10*time.Minute))
		require.NoError(t, err)
	}

	window := models.TimeWindow{Start: base.Add(30 * time.Minute), End: base.Add(3 * time.Hour)}

	intervals, err := store.Intervals(ctx, memKey, window)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.True(t, intervals[0].StartedAt.Before(intervals[1].StartedAt))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
