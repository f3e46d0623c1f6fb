// Package models pkg/models/metrics.go
package models

import "time"

// RatePoint is one historical bps observation kept for an interface.
type RatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Bps       float64   `json:"bps"`
	Collector string    `json:"collector"`
}

// HistoryConfig controls the per-interface rate history buffers.
type HistoryConfig struct {
	Enabled   bool `json:"history_enabled"`
	Retention int  `json:"history_retention"`
}
