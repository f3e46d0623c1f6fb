package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

const defaultRetention = 100

// Manager keeps one rate buffer per interface key. It implements the
// engine's RateRecorder, so every decided canonical state lands here.
type Manager struct {
	keys       sync.Map // models.InterfaceKey -> *keyHistory
	cfg        models.HistoryConfig
	activeKeys int64
}

type keyHistory struct {
	mu     sync.RWMutex
	buffer RateStore
}

// NewManager creates a history manager with the given config.
func NewManager(cfg models.HistoryConfig) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	return &Manager{cfg: cfg}
}

// Record stores a bps point for a key.
func (m *Manager) Record(key models.InterfaceKey, point models.RatePoint) {
	if !m.cfg.Enabled {
		return
	}

	history, loaded := m.keys.LoadOrStore(key, &keyHistory{
		buffer: NewBuffer(m.cfg.Retention),
	})

	if !loaded {
		atomic.AddInt64(&m.activeKeys, 1)
	}

	kh := history.(*keyHistory)

	kh.mu.Lock()
	defer kh.mu.Unlock()

	kh.buffer.Add(point.Timestamp, point.Bps, point.Collector)
}

// GetPoints returns the recent bps history for a key, newest first.
func (m *Manager) GetPoints(key models.InterfaceKey) []models.RatePoint {
	history, ok := m.keys.Load(key)
	if !ok {
		return nil
	}

	kh := history.(*keyHistory)

	kh.mu.RLock()
	defer kh.mu.RUnlock()

	return kh.buffer.GetPoints()
}

// ActiveKeys returns the number of keys with recorded history.
func (m *Manager) ActiveKeys() int64 {
	return atomic.LoadInt64(&m.activeKeys)
}
