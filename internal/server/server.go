// Package server exposes valuations over HTTP.
//
//	POST /price    body: valuation.Config JSON, reply: valuation.Result JSON
//	GET  /health   "ok"
//	GET  /metrics  Prometheus exposition
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contactkeval/option-pricing/internal/data"
	"github.com/contactkeval/option-pricing/internal/logger"
	"github.com/contactkeval/option-pricing/internal/pricing"
	"github.com/contactkeval/option-pricing/internal/strike"
	"github.com/contactkeval/option-pricing/internal/valuation"
)

const maxBodyBytes = 1 << 20

// Defaults used for zero Limits fields.
const (
	DefaultMaxSimulations = 5_000_000
	DefaultMaxSteps       = 1_000
	DefaultMaxSamplePaths = 1_000
	DefaultMaxHistoryDays = 3_650
	DefaultMaxDraws       = 100_000_000
)

// Limits caps the work a single /price request may ask for.
type Limits struct {
	Simulations int // num_simulations
	Steps       int // steps per path
	SamplePaths int // retained trajectories
	HistoryDays int // bar lookback
	Draws       int // num_simulations * steps
}

func (l Limits) withDefaults() Limits {
	if l.Simulations <= 0 {
		l.Simulations = DefaultMaxSimulations
	}
	if l.Steps <= 0 {
		l.Steps = DefaultMaxSteps
	}
	if l.SamplePaths <= 0 {
		l.SamplePaths = DefaultMaxSamplePaths
	}
	if l.HistoryDays <= 0 {
		l.HistoryDays = DefaultMaxHistoryDays
	}
	if l.Draws <= 0 {
		l.Draws = DefaultMaxDraws
	}
	return l
}

// check rejects configs whose run size exceeds l.
func (l Limits) check(cfg *valuation.Config) error {
	sims := cfg.Simulations
	if sims <= 0 {
		sims = valuation.DefaultSimulations
	}
	steps := max(cfg.Steps, 1)

	switch {
	case cfg.Simulations > l.Simulations:
		return fmt.Errorf("num_simulations %d exceeds limit %d", cfg.Simulations, l.Simulations)
	case cfg.Steps > l.Steps:
		return fmt.Errorf("steps %d exceeds limit %d", cfg.Steps, l.Steps)
	case cfg.SamplePaths > l.SamplePaths:
		return fmt.Errorf("sample_paths %d exceeds limit %d", cfg.SamplePaths, l.SamplePaths)
	case cfg.HistoryDays > l.HistoryDays:
		return fmt.Errorf("history_days %d exceeds limit %d", cfg.HistoryDays, l.HistoryDays)
	case sims*steps > l.Draws:
		return fmt.Errorf("num_simulations*steps %d exceeds limit %d", sims*steps, l.Draws)
	}
	return nil
}

type Server struct {
	prov     data.Provider
	metrics  *Metrics
	registry *prometheus.Registry
	limits   Limits
}

// New builds a server pricing against prov. Zero fields of limits select
// the package defaults.
func New(prov data.Provider, limits Limits) (*Server, error) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	return &Server{prov: prov, metrics: m, registry: reg, limits: limits.withDefaults()}, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /price", s.handlePrice)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("event=rest_start addr=%s", addr)
	return srv.ListenAndServe()
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	logger.Infof("event=rest_request path=/price remote=%s", r.RemoteAddr)

	var cfg valuation.Config
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		s.fail(w, "unknown", http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if err := s.limits.check(&cfg); err != nil {
		s.fail(w, string(cfg.Model), http.StatusBadRequest, err)
		return
	}

	// engines are not shared between requests
	res, err := valuation.NewEngine(&cfg, s.prov).Run(r.Context())
	if err != nil {
		s.fail(w, string(cfg.Model), statusFor(err), err)
		return
	}
	if res.MonteCarlo != nil {
		s.metrics.SimulationSeconds.Observe(res.MonteCarlo.Elapsed.Seconds())
	}
	s.metrics.RequestsTotal.WithLabelValues(modelLabel(string(cfg.Model)), "ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger.Debugf("event=rest_write_failed path=/price err=%v", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, model string, status int, err error) {
	s.metrics.RequestsTotal.WithLabelValues(modelLabel(model), "error").Inc()
	if status >= http.StatusInternalServerError {
		logger.Errorf("event=rest_error status=%d err=%v", status, err)
	} else {
		logger.Debugf("event=rest_rejected status=%d err=%v", status, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps caller mistakes to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidParameter),
		errors.Is(err, pricing.ErrUnsupportedOptionKind),
		errors.Is(err, pricing.ErrNonFinitePrice),
		errors.Is(err, valuation.ErrInvalidConfig),
		errors.Is(err, strike.ErrInvalidStrikeExpression),
		errors.Is(err, strike.ErrNegativeStrike):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// modelLabel keeps label cardinality bounded for malformed requests.
func modelLabel(model string) string {
	switch valuation.Model(model) {
	case valuation.ModelBlackScholes, valuation.ModelMonteCarlo, valuation.ModelBoth:
		return model
	case "":
		return string(valuation.ModelBoth)
	default:
		return "unknown"
	}
}
