package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

func TestResolveCycleGroupsByKey(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	keyA := models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"}
	keyB := models.InterfaceKey{Exporter: "10.0.0.2", Iface: "0"}

	resolved := ResolveCycle([]models.Sample{
		{Key: keyA, Collector: "fc-a", Bps: 100, ObservedAt: base},
		{Key: keyA, Collector: "fc-b", Bps: 0, ObservedAt: base},
		{Key: keyB, Collector: "fc-a", Bps: 50, ObservedAt: base},
	})

	require.Len(t, resolved, 2)
	assert.Len(t, resolved[keyA], 2)
	assert.Len(t, resolved[keyB], 1)
}

func TestResolveCycleKeepsLatestDuplicate(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	key := models.InterfaceKey{Exporter: "10.0.0.1", Iface: "0"}

	tests := []struct {
		name    string
		samples []models.Sample
		wantBps float64
	}{
		{
			name: "later duplicate wins",
			samples: []models.Sample{
				{Key: key, Collector: "fc-a", Bps: 100, ObservedAt: base},
				{Key: key, Collector: "fc-a", Bps: 200, ObservedAt: base.Add(time.Second)},
			},
			wantBps: 200,
		},
		{
			name: "earlier duplicate discarded",
			samples: []models.Sample{
				{Key: key, Collector: "fc-a", Bps: 300, ObservedAt: base.Add(time.Second)},
				{Key: key, Collector: "fc-a", Bps: 100, ObservedAt: base},
			},
			wantBps: 300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := ResolveCycle(tt.samples)

			require.Len(t, resolved[key], 1)
			assert.InDelta(t, tt.wantBps, resolved[key][0].Bps, 0.001)
		})
	}
}

func TestResolveCycleEmpty(t *testing.T) {
	assert.Empty(t, ResolveCycle(nil))
}
