// Package api pkg/api/server.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpx "github.com/mfreeman451/flowwatch/pkg/http"
	"github.com/mfreeman451/flowwatch/pkg/models"
)

const (
	defaultWindow   = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// StateProvider exposes reconciled interface state.
type StateProvider interface {
	State(key models.InterfaceKey) (models.CanonicalState, bool)
	States() []models.CanonicalState
}

// DowntimeQuerier answers windowed downtime queries.
type DowntimeQuerier interface {
	Query(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) (float64, error)
	QueryAll(ctx context.Context, w models.TimeWindow) (float64, error)
	Intervals(ctx context.Context, key models.InterfaceKey, w models.TimeWindow) ([]models.DowntimeInterval, error)
}

// SourceLister reports per-collector health.
type SourceLister interface {
	GetSourceStatuses() []models.SourceStatus
}

// HistoryProvider returns recent bps points for a key.
type HistoryProvider interface {
	GetPoints(key models.InterfaceKey) []models.RatePoint
}

// APIServer serves the read-only HTTP surface over the engine, ledger
// and poller.
type APIServer struct {
	states     StateProvider
	downtime   DowntimeQuerier
	sources    SourceLister
	history    HistoryProvider
	hub        *Hub
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
}

// NewAPIServer builds the HTTP surface. A nil hub gets replaced with a
// fresh one, so callers that do not fan events out can skip it.
func NewAPIServer(states StateProvider, downtime DowntimeQuerier, sources SourceLister, history HistoryProvider, hub *Hub) *APIServer {
	if hub == nil {
		hub = NewHub()
	}

	s := &APIServer{
		states:   states,
		downtime: downtime,
		sources:  sources,
		history:  history,
		hub:      hub,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

// Hub returns the websocket hub so it can be wired as a transition sink.
func (s *APIServer) Hub() *Hub {
	return s.hub
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/api/interfaces", s.getInterfaces).Methods("GET")
	s.router.HandleFunc("/api/interfaces/{exporter}/{iface}", s.getInterface).Methods("GET")
	s.router.HandleFunc("/api/interfaces/{exporter}/{iface}/downtime", s.getInterfaceDowntime).Methods("GET")
	s.router.HandleFunc("/api/interfaces/{exporter}/{iface}/history", s.getInterfaceHistory).Methods("GET")
	s.router.HandleFunc("/api/downtime", s.getTotalDowntime).Methods("GET")
	s.router.HandleFunc("/api/sources", s.getSources).Methods("GET")
	s.router.HandleFunc("/api/status", s.getSystemStatus).Methods("GET")
	s.router.HandleFunc("/api/events", s.hub.ServeWS)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS wraps the whole router so preflight requests get answered
	// even for method-restricted routes.
	s.handler = httpx.CommonMiddleware(s.router)
}

// Router exposes the handler for tests.
func (s *APIServer) Router() http.Handler {
	return s.handler
}

func (s *APIServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("API server listening on %s", addr)

	return s.httpServer.ListenAndServe()
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	s.hub.Close()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// SystemStatus summarizes the whole deployment. When every collector is
// unavailable the interface counts freeze at last-known values; the
// sources fields let a caller tell that situation apart from a mass
// outage.
type SystemStatus struct {
	TotalInterfaces  int       `json:"total_interfaces"`
	Up               int       `json:"up"`
	Down             int       `json:"down"`
	Unknown          int       `json:"unknown"`
	SourcesTotal     int       `json:"sources_total"`
	SourcesAvailable int       `json:"sources_available"`
	LastUpdate       time.Time `json:"last_update"`
}

// DowntimeSummary is the response for windowed downtime queries.
type DowntimeSummary struct {
	Key         *models.InterfaceKey      `json:"key,omitempty"`
	Window      models.TimeWindow         `json:"window"`
	DownSeconds float64                   `json:"down_seconds"`
	Intervals   []models.DowntimeInterval `json:"intervals,omitempty"`
}

func (s *APIServer) getInterfaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.states.States())
}

func (s *APIServer) getInterface(w http.ResponseWriter, r *http.Request) {
	key := keyFromVars(mux.Vars(r))

	state, ok := s.states.State(key)
	if !ok {
		http.Error(w, "Interface not found", http.StatusNotFound)
		return
	}

	writeJSON(w, state)
}

func (s *APIServer) getInterfaceHistory(w http.ResponseWriter, r *http.Request) {
	key := keyFromVars(mux.Vars(r))

	if s.history == nil {
		http.Error(w, "History not enabled", http.StatusNotFound)
		return
	}

	points := s.history.GetPoints(key)
	if points == nil {
		points = []models.RatePoint{}
	}

	writeJSON(w, points)
}

func (s *APIServer) getInterfaceDowntime(w http.ResponseWriter, r *http.Request) {
	key := keyFromVars(mux.Vars(r))

	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seconds, err := s.downtime.Query(r.Context(), key, window)
	if err != nil {
		log.Printf("Error querying downtime for %s: %v", key, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	intervals, err := s.downtime.Intervals(r.Context(), key, window)
	if err != nil {
		log.Printf("Error listing intervals for %s: %v", key, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, DowntimeSummary{
		Key:         &key,
		Window:      window,
		DownSeconds: seconds,
		Intervals:   intervals,
	})
}

func (s *APIServer) getTotalDowntime(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seconds, err := s.downtime.QueryAll(r.Context(), window)
	if err != nil {
		log.Printf("Error querying total downtime: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, DowntimeSummary{
		Window:      window,
		DownSeconds: seconds,
	})
}

func (s *APIServer) getSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.sources.GetSourceStatuses())
}

func (s *APIServer) getSystemStatus(w http.ResponseWriter, _ *http.Request) {
	status := SystemStatus{LastUpdate: time.Now()}

	for _, state := range s.states.States() {
		status.TotalInterfaces++

		switch state.State {
		case models.StateUp:
			status.Up++
		case models.StateDown:
			status.Down++
		case models.StateUnknown:
			status.Unknown++
		}
	}

	for _, src := range s.sources.GetSourceStatuses() {
		status.SourcesTotal++

		if src.Available {
			status.SourcesAvailable++
		}
	}

	writeJSON(w, status)
}

func keyFromVars(vars map[string]string) models.InterfaceKey {
	return models.InterfaceKey{
		Exporter: vars["exporter"],
		Iface:    vars["iface"],
	}
}

// parseWindow reads the half-open [start, end) query window. End
// defaults to now, start to 24h before end.
func parseWindow(r *http.Request) (models.TimeWindow, error) {
	now := time.Now()

	window := models.TimeWindow{
		Start: now.Add(-defaultWindow),
		End:   now,
	}

	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, err
		}

		window.End = end
		window.Start = end.Add(-defaultWindow)
	}

	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, err
		}

		window.Start = start
	}

	return window, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
