// Package engine pkg/engine/resolver.go
package engine

import (
	"log"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// ResolveCycle groups one poll cycle's unordered samples by interface
// key, regardless of which collector produced them. A collector is not
// expected to report the same key twice in one cycle; if it does, the
// sample with the latest observation time wins and the earlier one is
// discarded as stale.
func ResolveCycle(samples []models.Sample) map[models.InterfaceKey][]models.Sample {
	type sourceKey struct {
		key       models.InterfaceKey
		collector string
	}

	latest := make(map[sourceKey]models.Sample)

	for _, s := range samples {
		sk := sourceKey{key: s.Key, collector: s.Collector}

		prev, exists := latest[sk]
		if !exists {
			latest[sk] = s
			continue
		}

		if s.ObservedAt.After(prev.ObservedAt) {
			log.Printf("Discarding stale duplicate sample for %s from %s (observed %v, kept %v)",
				s.Key, s.Collector, prev.ObservedAt, s.ObservedAt)

			latest[sk] = s
		} else {
			log.Printf("Discarding stale duplicate sample for %s from %s (observed %v, kept %v)",
				s.Key, s.Collector, s.ObservedAt, prev.ObservedAt)
		}
	}

	resolved := make(map[models.InterfaceKey][]models.Sample)
	for sk, s := range latest {
		resolved[sk.key] = append(resolved[sk.key], s)
	}

	return resolved
}
