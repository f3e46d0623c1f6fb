package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// MemoryStore implements Store with in-memory state. It mirrors the
// SQLite store's semantics and backs diskless runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	intervals map[models.InterfaceKey][]models.DowntimeInterval
	open      map[models.InterfaceKey]int // index into intervals slice
	nowFunc   func() time.Time
}

// NewMemoryStore creates an empty in-memory downtime store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		intervals: make(map[models.InterfaceKey][]models.DowntimeInterval),
		open:      make(map[models.InterfaceKey]int),
		nowFunc:   time.Now,
	}
}

func (s *MemoryStore) OpenInterval(_ context.Context, key models.InterfaceKey, startedAt time.Time) (models.DowntimeInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[key]; exists {
		return models.DowntimeInterval{}, fmt.Errorf("%w for %s", ErrIntervalAlreadyOpen, key)
	}

	interval := models.DowntimeInterval{
		ID:        s.nextID,
		Key:       key,
		StartedAt: startedAt,
	}
	s.nextID++

	s.intervals[key] = append(s.intervals[key], interval)
	s.open[key] = len(s.intervals[key]) - 1

	return interval, nil
}

func (s *MemoryStore) CloseInterval(_ context.Context, key models.InterfaceKey, endedAt time.Time) (models.DowntimeInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.open[key]
	if !exists {
		return models.DowntimeInterval{}, fmt.Errorf("%w for %s", ErrNoOpenInterval, key)
	}

	ended := endedAt
	s.intervals[key][idx].EndedAt = &ended
	delete(s.open, key)

	return s.intervals[key][idx], nil
}

func (s *MemoryStore) GetOpenInterval(_ context.Context, key models.InterfaceKey) (*models.DowntimeInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.open[key]
	if !exists {
		return nil, nil
	}

	interval := s.intervals[key][idx]

	return &interval, nil
}

func (s *MemoryStore) Query(_ context.Context, key models.InterfaceKey, w models.TimeWindow) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumLocked(key, w), nil
}

func (s *MemoryStore) QueryAll(_ context.Context, w models.TimeWindow) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for key := range s.intervals {
		total += s.sumLocked(key, w)
	}

	return total, nil
}

func (s *MemoryStore) Intervals(_ context.Context, key models.InterfaceKey, w models.TimeWindow) ([]models.DowntimeInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowFunc()

	var out []models.DowntimeInterval

	for _, interval := range s.intervals[key] {
		if interval.ClippedSeconds(w, now) > 0 {
			out = append(out, interval)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})

	return out, nil
}

func (s *MemoryStore) sumLocked(key models.InterfaceKey, w models.TimeWindow) float64 {
	now := s.nowFunc()

	var total float64
	for _, interval := range s.intervals[key] {
		total += interval.ClippedSeconds(w, now)
	}

	return total
}

func (s *MemoryStore) Close() error {
	return nil
}
