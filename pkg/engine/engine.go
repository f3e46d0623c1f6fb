// Package engine pkg/engine/engine.go wires the resolver, aggregator
// and detector into a sharded pipeline: one worker goroutine per shard,
// keys hashed onto shards, so state for a given key only ever has a
// single writer while distinct keys proceed in parallel.
package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/models"
)

const defaultShards = 8

// Engine applies poll cycles to per-key canonical state and publishes
// the resulting transition events.
type Engine struct {
	aggregator *Aggregator
	detector   *Detector
	sinks      []TransitionSink
	recorder   RateRecorder
	shards     []*shard
	started    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once

	// onInvariant is called for invariant violations; they indicate a
	// bug and are surfaced, never corrected.
	onInvariant func(error)
}

type cycleWork struct {
	ctx     context.Context
	key     models.InterfaceKey
	samples []models.Sample
	cycleAt time.Time
	wg      *sync.WaitGroup
}

type shard struct {
	ch chan cycleWork
}

// Option configures an Engine.
type Option func(*Engine)

// WithSinks sets the transition sinks.
func WithSinks(sinks ...TransitionSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithRecorder sets the bps history recorder.
func WithRecorder(r RateRecorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithInvariantHandler overrides the default (logging) handler for
// invariant violations.
func WithInvariantHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onInvariant = fn
	}
}

// NewEngine creates an engine over the given aggregator and detector.
func NewEngine(aggregator *Aggregator, detector *Detector, opts ...Option) *Engine {
	e := &Engine{
		aggregator: aggregator,
		detector:   detector,
		done:       make(chan struct{}),
		onInvariant: func(err error) {
			log.Printf("INVARIANT VIOLATION: %v", err)
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.shards = make([]*shard, defaultShards)
	for i := range e.shards {
		e.shards[i] = &shard{ch: make(chan cycleWork, 64)}
	}

	return e
}

// Start launches the shard workers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	for _, sh := range e.shards {
		e.wg.Add(1)

		go e.runShard(ctx, sh)
	}

	e.started = true

	return nil
}

// Stop drains the shard workers.
func (e *Engine) Stop() error {
	e.closeOnce.Do(func() {
		close(e.done)
	})

	e.wg.Wait()

	return nil
}

// ProcessCycle applies one merged poll cycle. It blocks until every key
// in the batch has been applied, so successive cycles are handled in
// order and a cycle is never interleaved with the next one for the same
// key.
func (e *Engine) ProcessCycle(ctx context.Context, samples []models.Sample, cycleAt time.Time) error {
	resolved := ResolveCycle(samples)

	var wg sync.WaitGroup

	for key, keySamples := range resolved {
		work := cycleWork{
			ctx:     ctx,
			key:     key,
			samples: keySamples,
			cycleAt: cycleAt,
			wg:      &wg,
		}

		wg.Add(1)

		select {
		case e.shardFor(key).ch <- work:
		case <-ctx.Done():
			wg.Done()
			return ctx.Err()
		case <-e.done:
			wg.Done()
			return nil
		}
	}

	wg.Wait()

	return nil
}

// StateProvider surface for the API.

// State returns the canonical state for a key, if known.
func (e *Engine) State(key models.InterfaceKey) (models.CanonicalState, bool) {
	return e.aggregator.State(key)
}

// States returns all known canonical states.
func (e *Engine) States() []models.CanonicalState {
	return e.aggregator.States()
}

func (e *Engine) shardFor(key models.InterfaceKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Exporter))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Iface))

	return e.shards[h.Sum32()%uint32(len(e.shards))]
}

func (e *Engine) runShard(ctx context.Context, sh *shard) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case work := <-sh.ch:
			e.applyKey(work)
			work.wg.Done()
		}
	}
}

func (e *Engine) applyKey(work cycleWork) {
	cur, prev, decided := e.aggregator.Observe(work.key, work.samples, work.cycleAt)
	if !decided {
		return
	}

	if e.recorder != nil {
		e.recorder.Record(work.key, models.RatePoint{
			Timestamp: cur.AsOf,
			Bps:       cur.Bps,
			Collector: cur.Collector,
		})
	}

	transition, err := e.detector.Apply(work.ctx, prev, cur)
	if err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			e.onInvariant(err)
		} else {
			log.Printf("Error applying state for %s: %v", work.key, err)
		}

		return
	}

	if transition == nil {
		return
	}

	e.publish(work.ctx, *transition)
}

func (e *Engine) publish(ctx context.Context, t models.Transition) {
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, t); err != nil {
			log.Printf("Error publishing transition %s for %s: %v", t.Direction, t.Key, err)
		}
	}
}
