package metrics

import (
	"context"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// PromSink mirrors transition events into the Prometheus collectors. It
// is wired into the engine alongside the alert and websocket sinks.
type PromSink struct{}

func NewPromSink() *PromSink {
	return &PromSink{}
}

func (*PromSink) Publish(_ context.Context, t models.Transition) error {
	Transitions.WithLabelValues(string(t.Direction)).Inc()

	switch t.Direction {
	case models.DirectionWentDown:
		InterfacesDown.Inc()
	case models.DirectionCameUp:
		InterfacesDown.Dec()
	}

	return nil
}
