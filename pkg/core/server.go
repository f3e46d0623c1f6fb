// Package core pkg/core/server.go assembles the flowwatch service:
// collectors feed the poller, the engine reconciles state and books
// downtime, and the HTTP API serves the results.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mfreeman451/flowwatch/pkg/alerts"
	"github.com/mfreeman451/flowwatch/pkg/api"
	"github.com/mfreeman451/flowwatch/pkg/collector"
	"github.com/mfreeman451/flowwatch/pkg/config"
	"github.com/mfreeman451/flowwatch/pkg/engine"
	"github.com/mfreeman451/flowwatch/pkg/ledger"
	"github.com/mfreeman451/flowwatch/pkg/metrics"
	"github.com/mfreeman451/flowwatch/pkg/poller"
	"github.com/mfreeman451/flowwatch/pkg/probe"
)

const probeRate = 10 // echo requests per second across all hosts

// Server is the composed flowwatch service. It implements the lifecycle
// Service interface.
type Server struct {
	cfg     *config.CoreConfig
	store   ledger.Store
	engine  *engine.Engine
	poller  *poller.Poller
	api     *api.APIServer
	prober  probe.Prober
	history *metrics.Manager
}

// NewServer wires the full pipeline from configuration.
func NewServer(_ context.Context, cfg *config.CoreConfig) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open downtime store: %w", err)
	}

	history := metrics.NewManager(cfg.History)
	hub := api.NewHub()

	sinks := []engine.TransitionSink{
		buildNotifier(cfg),
		hub,
		metrics.NewPromSink(),
	}

	aggregator := engine.NewAggregator(time.Duration(cfg.FreshnessWindow))
	detector := engine.NewDetector(store)

	eng := engine.NewEngine(aggregator, detector,
		engine.WithSinks(sinks...),
		engine.WithRecorder(history),
		engine.WithInvariantHandler(func(err error) {
			metrics.InvariantViolations.Inc()
			log.Printf("INVARIANT VIOLATION: %v", err)
		}),
	)

	sources, err := buildSources(cfg)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	prober := probe.NewICMPProber(0, 0, probeRate)
	p := poller.New(cfg, sources, eng, prober)

	s := &Server{
		cfg:     cfg,
		store:   store,
		engine:  eng,
		poller:  p,
		prober:  prober,
		history: history,
		api:     api.NewAPIServer(eng, store, p, history, hub),
	}

	return s, nil
}

// Start launches the engine workers, the HTTP API and the poll loop. It
// blocks until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	go func() {
		if err := s.api.Start(s.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("API server error: %v", err)
		}
	}()

	return s.poller.Start(ctx)
}

// Stop shuts the pipeline down in dependency order: no new cycles, then
// drain the engine, then close the outward surfaces and the store.
func (s *Server) Stop(ctx context.Context) error {
	s.poller.Stop()

	if err := s.engine.Stop(); err != nil {
		log.Printf("Error stopping engine: %v", err)
	}

	if err := s.api.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	if err := s.prober.Close(); err != nil {
		log.Printf("Error closing prober: %v", err)
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close downtime store: %w", err)
	}

	return nil
}

// newStore picks sqlite when a path is configured, an in-memory ledger
// otherwise. The memory ledger loses history on restart and is meant
// for development.
func newStore(cfg *config.CoreConfig) (ledger.Store, error) {
	if cfg.DBPath == "" {
		log.Printf("No db_path configured, using in-memory downtime ledger")
		return ledger.NewMemoryStore(), nil
	}

	return ledger.NewSQLiteStore(cfg.DBPath)
}

func buildSources(cfg *config.CoreConfig) ([]collector.SampleSource, error) {
	sources := make([]collector.SampleSource, 0, len(cfg.Collectors))

	for i := range cfg.Collectors {
		src, err := collector.NewSource(cfg.Collectors[i])
		if err != nil {
			for _, open := range sources {
				closeQuietly(open)
			}

			return nil, fmt.Errorf("collector %s: %w", cfg.Collectors[i].Name, err)
		}

		sources = append(sources, src)
	}

	return sources, nil
}

func buildNotifier(cfg *config.CoreConfig) *alerts.Notifier {
	alerters := []alerts.AlertService{alerts.NewLogAlerter()}

	for _, wh := range cfg.Webhooks {
		if !wh.Enabled {
			continue
		}

		alerters = append(alerters, alerts.NewWebhookAlerter(alerts.WebhookConfig{
			Enabled:  wh.Enabled,
			URL:      wh.URL,
			Cooldown: time.Duration(wh.Cooldown),
			Template: wh.Template,
			Headers:  convertHeaders(wh.Headers),
		}))
	}

	return alerts.NewNotifier(alerters...)
}

func convertHeaders(headers []config.Header) []alerts.Header {
	out := make([]alerts.Header, 0, len(headers))
	for _, h := range headers {
		out = append(out, alerts.Header{Key: h.Key, Value: h.Value})
	}

	return out
}

func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Printf("Error during close: %v", err)
	}
}
