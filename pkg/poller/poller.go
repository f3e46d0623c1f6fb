// Package poller pkg/poller/poller.go drives the collection cycles.
package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/collector"
	"github.com/mfreeman451/flowwatch/pkg/config"
	"github.com/mfreeman451/flowwatch/pkg/engine"
	"github.com/mfreeman451/flowwatch/pkg/metrics"
	"github.com/mfreeman451/flowwatch/pkg/models"
	"github.com/mfreeman451/flowwatch/pkg/probe"
)

const (
	defaultPollInterval      = 60 * time.Second
	defaultPollTimeout       = 30 * time.Second
	defaultDegradedThreshold = 5 * time.Minute
)

var errClosed = fmt.Errorf("poller is closed")

// Poller fetches samples from every collector on a fixed interval and
// hands each completed batch to the reconciliation engine. Collectors
// are polled concurrently; the cycle merges at the barrier before the
// engine sees anything.
type Poller struct {
	sources   []collector.SampleSource
	engine    *engine.Engine
	prober    probe.Prober
	interval  time.Duration
	timeout   time.Duration
	degraded  time.Duration
	statuses  map[string]*models.SourceStatus
	mu        sync.RWMutex
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	nowFunc   func() time.Time
}

// New creates a poller over the given sources.
func New(cfg *config.CoreConfig, sources []collector.SampleSource, eng *engine.Engine, prober probe.Prober) *Poller {
	interval := time.Duration(cfg.PollInterval)
	if interval <= 0 {
		interval = defaultPollInterval
	}

	timeout := time.Duration(cfg.PollTimeout)
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	degraded := time.Duration(cfg.DegradedThreshold)
	if degraded <= 0 {
		degraded = defaultDegradedThreshold
	}

	statuses := make(map[string]*models.SourceStatus, len(sources))
	for _, src := range sources {
		statuses[src.Name()] = &models.SourceStatus{
			Name: src.Name(),
			Type: src.Type(),
		}
	}

	return &Poller{
		sources:  sources,
		engine:   eng,
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		degraded: degraded,
		statuses: statuses,
		done:     make(chan struct{}),
		nowFunc:  time.Now,
	}
}

// Start runs poll cycles until the context is canceled or Stop is
// called. The first cycle fires immediately.
func (p *Poller) Start(ctx context.Context) error {
	log.Printf("Starting poller: %d collectors, interval %v, timeout %v",
		len(p.sources), p.interval, p.timeout)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.runCycle(ctx); err != nil {
		log.Printf("Poll cycle error: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return errClosed
		case <-ticker.C:
			if err := p.runCycle(ctx); err != nil {
				log.Printf("Poll cycle error: %v", err)
			}
		}
	}
}

// Stop shuts the poller down and closes all sources.
func (p *Poller) Stop() {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()

	for _, src := range p.sources {
		if err := src.Close(); err != nil {
			log.Printf("Error closing collector %s: %v", src.Name(), err)
		}
	}
}

// runCycle polls every source concurrently, merges whatever arrived
// before the per-source timeout, and applies the batch. A collector
// that fails contributes nothing; the engine holds previous state for
// keys nobody reported on.
func (p *Poller) runCycle(ctx context.Context) error {
	cycleAt := p.nowFunc()

	var (
		mu      sync.Mutex
		merged  []models.Sample
		cycleWG sync.WaitGroup
	)

	for _, src := range p.sources {
		cycleWG.Add(1)
		p.wg.Add(1)

		go func(src collector.SampleSource) {
			defer cycleWG.Done()
			defer p.wg.Done()

			samples := p.pollSource(ctx, src)
			if len(samples) == 0 {
				return
			}

			mu.Lock()
			merged = append(merged, samples...)
			mu.Unlock()
		}(src)
	}

	cycleWG.Wait()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return errClosed
	default:
	}

	log.Printf("Poll cycle complete: %d samples from %d collectors", len(merged), len(p.sources))

	return p.engine.ProcessCycle(ctx, merged, cycleAt)
}

func (p *Poller) pollSource(ctx context.Context, src collector.SampleSource) []models.Sample {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	attemptAt := p.nowFunc()

	samples, err := src.Fetch(fetchCtx)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(src.Name()).Inc()
		log.Printf("Error fetching from collector %s: %v", src.Name(), err)
		p.recordFailure(ctx, src, attemptAt, err)

		return nil
	}

	metrics.SamplesIngested.WithLabelValues(src.Name()).Add(float64(len(samples)))
	p.recordSuccess(src.Name(), attemptAt)

	return samples
}

func (p *Poller) recordSuccess(name string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.statuses[name]
	if status == nil {
		return
	}

	status.Available = true
	status.Degraded = false
	status.LastSuccess = at
	status.LastAttempt = at
	status.LastError = ""
}

// recordFailure marks the source unavailable and, when a prober is
// wired, distinguishes a dead host from an application-level failure.
func (p *Poller) recordFailure(ctx context.Context, src collector.SampleSource, at time.Time, fetchErr error) {
	if p.prober != nil {
		result, err := p.prober.Ping(ctx, src.Host())

		switch {
		case err != nil:
			log.Printf("Probe error for %s: %v", src.Host(), err)
		case result.Available:
			log.Printf("Collector %s failed but host %s answers ICMP, fetch-level failure", src.Name(), src.Host())
		default:
			log.Printf("Collector %s failed and host %s is unreachable", src.Name(), src.Host())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.statuses[src.Name()]
	if status == nil {
		return
	}

	status.Available = false
	status.LastAttempt = at
	status.LastError = fetchErr.Error()

	if !status.LastSuccess.IsZero() && at.Sub(status.LastSuccess) >= p.degraded {
		status.Degraded = true
	}
}

// GetSourceStatuses reports per-collector health.
func (p *Poller) GetSourceStatuses() []models.SourceStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.SourceStatus, 0, len(p.statuses))
	for _, status := range p.statuses {
		out = append(out, *status)
	}

	return out
}
