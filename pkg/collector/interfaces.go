// Package collector pkg/collector/interfaces.go retrieves raw bit-rate
// samples from flow collectors. Sources are swappable I/O wrappers; the
// reconciliation engine never sees where a sample came from beyond the
// collector name it carries.
package collector

import (
	"context"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

//go:generate mockgen -destination=mock_collector.go -package=collector github.com/mfreeman451/flowwatch/pkg/collector SampleSource

// SampleSource produces one batch of samples per poll cycle.
type SampleSource interface {
	// Name returns the collector identifier samples are tagged with
	Name() string

	// Type returns the source type ("ssh", "snmp")
	Type() string

	// Host returns the address the source talks to
	Host() string

	// Fetch retrieves the current cycle's samples; it must honor ctx
	// cancellation and deadlines
	Fetch(ctx context.Context) ([]models.Sample, error)

	// Close releases any held connections
	Close() error
}
