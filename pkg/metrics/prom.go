// Package metrics pkg/metrics/prom.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesIngested counts raw samples accepted per collector.
	SamplesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowwatch_samples_ingested_total",
		Help: "Raw bit-rate samples ingested, per collector.",
	}, []string{"collector"})

	// ParseErrors counts stats-file rows discarded as malformed.
	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowwatch_parse_errors_total",
		Help: "Malformed stats rows discarded, per collector.",
	}, []string{"collector"})

	// FetchErrors counts failed poll attempts per collector.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowwatch_fetch_errors_total",
		Help: "Poll cycles that failed to retrieve samples, per collector.",
	}, []string{"collector"})

	// Transitions counts emitted status-change events by direction.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowwatch_transitions_total",
		Help: "Status transition events emitted, by direction.",
	}, []string{"direction"})

	// InterfacesDown tracks the number of interfaces currently down.
	InterfacesDown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowwatch_interfaces_down",
		Help: "Interfaces whose canonical state is down.",
	})

	// InvariantViolations counts detected state invariant violations.
	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowwatch_invariant_violations_total",
		Help: "State invariant violations detected by the engine.",
	})
)
