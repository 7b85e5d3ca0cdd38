// Package health serves the liveness, readiness and status endpoints of the
// collector, plus /metrics when a Prometheus gatherer is supplied.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
)

const reportTimeout = 5 * time.Second

// Status is ordered: a report is as bad as its worst part.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

func worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Report is the state of one part of the pipeline.
type Report struct {
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Reporter is a data source check or a piece of delivery infrastructure.
type Reporter interface {
	Report(ctx context.Context) Report
}

// StatusResponse is the body of /health. Checks covers the polled data
// sources, Delivery the sender and the retry buffer.
type StatusResponse struct {
	Status    Status    `json:"status"`
	Checks    []Report  `json:"checks"`
	Delivery  []Report  `json:"delivery"`
	Timestamp time.Time `json:"timestamp"`
}

type Server struct {
	log     *slog.Logger
	address string
	server  *http.Server

	mu       sync.RWMutex
	checks   []Reporter
	delivery []Reporter
	ready    func() bool
	gatherer prometheus.Gatherer
}

func NewServer(log *slog.Logger, address string) *Server {
	return &Server{
		log:     log.With(slog.String("component", "health")),
		address: address,
	}
}

// AddCheck registers the report of a polled data source.
func (s *Server) AddCheck(r Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, r)
}

// AddDelivery registers the report of the sender or the buffer.
func (s *Server) AddDelivery(r Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivery = append(s.delivery, r)
}

// SetReadiness makes /ready answer 503 until ready returns true.
func (s *Server) SetReadiness(ready func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// ExposeMetrics serves g on /metrics. Must be called before Start.
func (s *Server) ExposeMetrics(g prometheus.Gatherer) {
	s.gatherer = g
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleStatus)
	r.Get("/ready", s.handleReady)
	r.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves in the background; listen errors are logged.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Snapshot collects every report and the overall status.
func (s *Server) Snapshot(ctx context.Context) StatusResponse {
	s.mu.RLock()
	checks := append([]Reporter(nil), s.checks...)
	delivery := append([]Reporter(nil), s.delivery...)
	s.mu.RUnlock()

	resp := StatusResponse{
		Status:    StatusHealthy,
		Checks:    make([]Report, 0, len(checks)),
		Delivery:  make([]Report, 0, len(delivery)),
		Timestamp: time.Now().UTC(),
	}

	for _, r := range checks {
		rep := r.Report(ctx)
		resp.Checks = append(resp.Checks, rep)
		resp.Status = worst(resp.Status, rep.Status)
	}
	for _, r := range delivery {
		rep := r.Report(ctx)
		resp.Delivery = append(resp.Delivery, rep)
		resp.Status = worst(resp.Status, rep.Status)
	}

	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	resp := s.Snapshot(ctx)

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Debug("failed to write status response", sl.Err(err))
	}
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	if ready != nil && !ready() {
		http.Error(w, "waiting for first cycle", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}
