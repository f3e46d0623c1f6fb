package metrics

import (
	"sync/atomic"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

// ratePoint is the compact in-buffer representation of one observation.
type ratePoint struct {
	timestamp int64
	bps       float64
	collector string
}

// LockFreeRingBuffer is a lock-free ring buffer of bps points.
type LockFreeRingBuffer struct {
	points []ratePoint
	pos    int64 // Atomic position counter
	size   int64
}

// NewBuffer creates a new RateStore.
func NewBuffer(size int) RateStore {
	return NewLockFreeBuffer(size)
}

// NewLockFreeBuffer creates a new LockFreeRingBuffer with the specified size.
func NewLockFreeBuffer(size int) RateStore {
	return &LockFreeRingBuffer{
		points: make([]ratePoint, size),
		size:   int64(size),
	}
}

// Add appends a bps point, overwriting the oldest once full.
func (b *LockFreeRingBuffer) Add(timestamp time.Time, bps float64, collector string) {
	pos := atomic.AddInt64(&b.pos, 1) - 1
	idx := pos % b.size

	b.points[idx] = ratePoint{
		timestamp: timestamp.UnixNano(),
		bps:       bps,
		collector: collector,
	}
}

// GetPoints retrieves the buffered points, most recent first.
func (b *LockFreeRingBuffer) GetPoints() []models.RatePoint {
	pos := atomic.LoadInt64(&b.pos)

	count := pos
	if count > b.size {
		count = b.size
	}

	points := make([]models.RatePoint, 0, count)

	for i := int64(0); i < count; i++ {
		idx := (pos - i - 1 + b.size) % b.size
		p := b.points[idx]

		points = append(points, models.RatePoint{
			Timestamp: time.Unix(0, p.timestamp),
			Bps:       p.bps,
			Collector: p.collector,
		})
	}

	return points
}
