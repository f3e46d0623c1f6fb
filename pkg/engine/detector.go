// Package engine pkg/engine/detector.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mfreeman451/flowwatch/pkg/ledger"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

// Detector is the per-key state machine over {unknown, up, down}. It is
// driven solely by the aggregator's output and owns the opening and
// closing of downtime intervals in the ledger.
type Detector struct {
	store ledger.Store
}

// NewDetector creates a detector writing intervals to the given store.
func NewDetector(store ledger.Store) *Detector {
	return &Detector{store: store}
}

// Apply compares a key's new canonical state against its previous one.
// It returns a transition event for up<->down flips. A first known DOWN
// state opens an interval without emitting an event, since there is no
// prior baseline to have transitioned from.
func (d *Detector) Apply(ctx context.Context, prev models.LinkState, cur models.CanonicalState) (*models.Transition, error) {
	if prev == cur.State {
		return nil, nil
	}

	switch {
	case prev == models.StateUnknown && cur.State == models.StateUp:
		return nil, nil

	case prev == models.StateUnknown && cur.State == models.StateDown:
		if err := d.openInterval(ctx, cur); err != nil {
			return nil, err
		}

		return nil, nil

	case prev == models.StateUp && cur.State == models.StateDown:
		if err := d.openInterval(ctx, cur); err != nil {
			return nil, err
		}

		t := models.NewTransition(cur.Key, prev, cur.State, cur.Bps, cur.AsOf)

		return &t, nil

	case prev == models.StateDown && cur.State == models.StateUp:
		if _, err := d.store.CloseInterval(ctx, cur.Key, cur.AsOf); err != nil {
			if errors.Is(err, ledger.ErrNoOpenInterval) {
				return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
			}

			return nil, err
		}

		t := models.NewTransition(cur.Key, prev, cur.State, cur.Bps, cur.AsOf)

		return &t, nil
	}

	// up/down -> unknown never happens: missing data holds the previous
	// state instead of producing an unknown decision.
	return nil, fmt.Errorf("%w: transition %s -> %s for %s", ErrInvariantViolation, prev, cur.State, cur.Key)
}

func (d *Detector) openInterval(ctx context.Context, cur models.CanonicalState) error {
	if _, err := d.store.OpenInterval(ctx, cur.Key, cur.AsOf); err != nil {
		if errors.Is(err, ledger.ErrIntervalAlreadyOpen) {
			// A second open interval means the single-writer-per-key
			// discipline was broken somewhere; never paper over it.
			return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}

		return err
	}

	return nil
}
