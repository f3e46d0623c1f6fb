// Package ledger pkg/ledger/interfaces.go maintains the append-only
// downtime interval history and answers windowed queries over it.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

//go:generate mockgen -destination=mock_ledger.go -package=ledger github.com/mfreeman451/flowwatch/pkg/ledger Store

var (
	// ErrIntervalAlreadyOpen indicates an attempt to open a second
	// downtime interval for a key that already has one open.
	ErrIntervalAlreadyOpen = errors.New("downtime interval already open")

	// ErrNoOpenInterval indicates an attempt to close a downtime
	// interval for a key that has none open.
	ErrNoOpenInterval = errors.New("no open downtime interval")
)

// Store owns the downtime interval history for all keys. Closed
// intervals are never deleted, only clipped by window queries.
type Store interface {
	// OpenInterval starts a downtime interval for a key
	OpenInterval(ctx context.Context, key models.InterfaceKey, startedAt time.Time) (models.DowntimeInterval, error)

	// CloseInterval ends the key's open interval
	CloseInterval(ctx context.Context, key models.InterfaceKey, endedAt time.Time) (models.DowntimeInterval, error)

	// GetOpenInterval returns the open interval for a key, or nil
	GetOpenInterval(ctx context.Context, key models.InterfaceKey) (*models.DowntimeInterval, error)

	// Query returns total down-seconds for a key within the window
	Query(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) (float64, error)

	// QueryAll returns total down-seconds across all keys within the window
	QueryAll(ctx context.Context, w models.TimeWindow) (float64, error)

	// Intervals returns the intervals overlapping the window for a key
	Intervals(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) ([]models.DowntimeInterval, error)

	// Close releases store resources
	Close() error
}
