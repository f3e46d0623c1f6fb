// Package models pkg/models/flow.go contains the core flowwatch data model.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LinkState is the reconciled verdict for an interface. Missing data is
// represented explicitly as unknown rather than defaulting bps to zero,
// so a collector outage is never accounted as interface downtime.
type LinkState string

const (
	StateUnknown LinkState = "unknown"
	StateUp      LinkState = "up"
	StateDown    LinkState = "down"
)

// InterfaceKey identifies a monitored link independently of which
// collector currently reports it. It is comparable and used as the
// grouping key everywhere.
type InterfaceKey struct {
	Exporter string `json:"exporter"`
	Iface    string `json:"iface"`
}

func (k InterfaceKey) String() string {
	return fmt.Sprintf("%s/%s", k.Exporter, k.Iface)
}

// Sample is a single immutable observation from one collector: the
// current NetFlow bps a collector reports for an exporter interface.
type Sample struct {
	Key        InterfaceKey `json:"key"`
	Collector  string       `json:"collector"`
	Bps        float64      `json:"bps"`
	ObservedAt time.Time    `json:"observed_at"`
}

// CanonicalState is the single reconciled status per key: best current
// knowledge after failover masking. Sources counts the collectors that
// contributed samples in the deciding cycle, so an all-collectors-down
// situation can be told apart from a genuinely down interface.
type CanonicalState struct {
	Key       InterfaceKey `json:"key"`
	State     LinkState    `json:"state"`
	Bps       float64      `json:"bps"`
	AsOf      time.Time    `json:"as_of"`
	Collector string       `json:"collector,omitempty"`
	Sources   int          `json:"sources"`
}

// IsUp reports whether the canonical state is up. The invariant
// state == up implies bps > 0 is maintained by the aggregator.
func (c CanonicalState) IsUp() bool {
	return c.State == StateUp
}

// TransitionDirection is the direction of a status change event.
type TransitionDirection string

const (
	DirectionWentDown TransitionDirection = "went_down"
	DirectionCameUp   TransitionDirection = "came_up"
)

// Transition is an immutable status-change event emitted when a key's
// canonical state flips between up and down. First observations of a
// never-seen key do not produce transitions.
type Transition struct {
	ID         string              `json:"id"`
	Key        InterfaceKey        `json:"key"`
	From       LinkState           `json:"from"`
	To         LinkState           `json:"to"`
	Direction  TransitionDirection `json:"direction"`
	Bps        float64             `json:"bps"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewTransition builds a transition event between two states.
func NewTransition(key InterfaceKey, from, to LinkState, bps float64, at time.Time) Transition {
	direction := DirectionCameUp
	if to == StateDown {
		direction = DirectionWentDown
	}

	return Transition{
		ID:         uuid.New().String(),
		Key:        key,
		From:       from,
		To:         to,
		Direction:  direction,
		Bps:        bps,
		OccurredAt: at,
	}
}

// DowntimeInterval records one continuous down period for a key. EndedAt
// is nil while the interval is still open; at most one open interval may
// exist per key at any time.
type DowntimeInterval struct {
	ID        int64        `json:"id"`
	Key       InterfaceKey `json:"key"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// Open reports whether the interval has not been closed yet.
func (i DowntimeInterval) Open() bool {
	return i.EndedAt == nil
}

// TimeWindow is a half-open query window [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ClippedSeconds returns the seconds of the interval that fall inside
// the window, clamped to be non-negative. An open interval is clipped at
// now.
func (i DowntimeInterval) ClippedSeconds(w TimeWindow, now time.Time) float64 {
	end := now
	if i.EndedAt != nil {
		end = *i.EndedAt
	}

	if end.After(w.End) {
		end = w.End
	}

	start := i.StartedAt
	if start.Before(w.Start) {
		start = w.Start
	}

	if !end.After(start) {
		return 0
	}

	return end.Sub(start).Seconds()
}

// SourceStatus is the health of one collector as seen by the poller.
// Degraded sources leave their keys frozen at last-known state.
type SourceStatus struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Available   bool      `json:"available"`
	Degraded    bool      `json:"degraded"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
}
