// Package metrics pkg/metrics/interfaces.go keeps per-interface bps
// history and exposes the service's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

//go:generate mockgen -destination=mock_metrics.go -package=metrics github.com/mfreeman451/flowwatch/pkg/metrics RateStore,RateCollector

// RateStore holds the recent bps points for one interface.
type RateStore interface {
	Add(timestamp time.Time, bps float64, collector string)
	GetPoints() []models.RatePoint
}

// RateCollector aggregates rate history across interfaces.
type RateCollector interface {
	Record(key models.InterfaceKey, point models.RatePoint)
	GetPoints(key models.InterfaceKey) []models.RatePoint
}
