// Package engine pkg/engine/aggregator.go
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// Aggregator reconciles per-key sample sets into one canonical state,
// applying failover masking: a zero-bps reading from one collector is
// ignored while another collector has reported positive traffic for the
// same key within the freshness window, because flows move between
// collectors asynchronously.
type Aggregator struct {
	freshness    time.Duration
	mu           sync.RWMutex
	states       map[models.InterfaceKey]models.CanonicalState
	lastPositive map[models.InterfaceKey]time.Time
}

// NewAggregator creates an aggregator with the given freshness window.
func NewAggregator(freshness time.Duration) *Aggregator {
	return &Aggregator{
		freshness:    freshness,
		states:       make(map[models.InterfaceKey]models.CanonicalState),
		lastPositive: make(map[models.InterfaceKey]time.Time),
	}
}

// Observe reconciles one cycle's samples for a key. It returns the new
// canonical state, the state the key was in before this cycle, and
// whether a decision was made. decided is false when no usable data
// arrived: the previous state is held unchanged, which is distinct from
// an explicit zero reading.
func (a *Aggregator) Observe(
	key models.InterfaceKey, samples []models.Sample, cycleAt time.Time,
) (current models.CanonicalState, previous models.LinkState, decided bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, seen := a.states[key]
	if !seen {
		prev = models.CanonicalState{Key: key, State: models.StateUnknown}
	}

	positives, zeros := partition(samples)

	switch {
	case len(positives) > 0:
		best := bestSample(positives)

		if len(zeros) > 0 {
			log.Printf("Masking %d zero reading(s) for %s: %s reports %.0f bps",
				len(zeros), key, best.Collector, best.Bps)
		}

		current = models.CanonicalState{
			Key:       key,
			State:     models.StateUp,
			Bps:       best.Bps,
			AsOf:      best.ObservedAt,
			Collector: best.Collector,
			Sources:   len(samples),
		}

	case len(zeros) > 0:
		if lp, ok := a.lastPositive[key]; ok && cycleAt.Sub(lp) <= a.freshness {
			// All zeros, but a positive reading from another collector is
			// still fresh: treat the zeros as failover artifacts and hold.
			log.Printf("Holding %s: zero readings within freshness window of positive at %v", key, lp)
			return prev, prev.State, false
		}

		last := latestSample(zeros)
		current = models.CanonicalState{
			Key:       key,
			State:     models.StateDown,
			Bps:       0,
			AsOf:      last.ObservedAt,
			Collector: last.Collector,
			Sources:   len(samples),
		}

	default:
		// No samples within the freshness window: no decision on missing
		// data, the key stays at its last-known state.
		return prev, prev.State, false
	}

	if seen && current.AsOf.Before(prev.AsOf) {
		log.Printf("Ignoring out-of-order state for %s: as_of %v precedes %v",
			key, current.AsOf, prev.AsOf)
		return prev, prev.State, false
	}

	if current.State == models.StateUp {
		a.lastPositive[key] = current.AsOf
	}

	a.states[key] = current

	return current, prev.State, true
}

// State returns the canonical state for a key, if the key has ever been
// decided.
func (a *Aggregator) State(key models.InterfaceKey) (models.CanonicalState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st, ok := a.states[key]

	return st, ok
}

// States returns a snapshot of all known canonical states.
func (a *Aggregator) States() []models.CanonicalState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.CanonicalState, 0, len(a.states))
	for _, st := range a.states {
		out = append(out, st)
	}

	return out
}

func partition(samples []models.Sample) (positives, zeros []models.Sample) {
	for _, s := range samples {
		if s.Bps > 0 {
			positives = append(positives, s)
		} else {
			zeros = append(zeros, s)
		}
	}

	return positives, zeros
}

// bestSample picks the sample with the greatest bps, breaking ties on
// the most recent observation time.
func bestSample(samples []models.Sample) models.Sample {
	best := samples[0]

	for _, s := range samples[1:] {
		if s.Bps > best.Bps || (s.Bps == best.Bps && s.ObservedAt.After(best.ObservedAt)) {
			best = s
		}
	}

	return best
}

func latestSample(samples []models.Sample) models.Sample {
	last := samples[0]

	for _, s := range samples[1:] {
		if s.ObservedAt.After(last.ObservedAt) {
			last = s
		}
	}

	return last
}
