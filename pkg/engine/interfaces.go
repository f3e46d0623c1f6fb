// Package engine pkg/engine/interfaces.go
package engine

import (
	"context"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

//go:generate mockgen -destination=mock_engine.go -package=engine github.com/mfreeman451/flowwatch/pkg/engine TransitionSink,RateRecorder

// TransitionSink consumes status-change events. Sinks must be safe for
// concurrent use; the engine calls them from its shard workers.
type TransitionSink interface {
	// Publish delivers a transition event
	Publish(ctx context.Context, t models.Transition) error
}

// RateRecorder receives every decided bps observation, e.g. for
// per-interface history buffers.
type RateRecorder interface {
	Record(key models.InterfaceKey, point models.RatePoint)
}
