// Package metrics exports responder counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/gopanel/pkg/server"
	"github.com/itohio/gopanel/pkg/tracker"
)

const namespace = "gopanel"

// Metrics collects loop, request and transition counters. Counters are safe
// to update from the loop while the endpoint is scraped.
type Metrics struct {
	registry *prometheus.Registry

	iterations  prometheus.Counter
	requests    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	values      *prometheus.GaugeVec

	last server.Stats
}

var _ tracker.Reporter = (*Metrics)(nil)

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Control loop iterations.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Accepted connections by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Reported channel transitions.",
		}, []string{"channel"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_value",
			Help:      "Last reported normalized channel value.",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(m.iterations, m.requests, m.transitions, m.values)
	for _, outcome := range []string{"served", "dropped", "faulted"} {
		m.requests.WithLabelValues(outcome)
	}

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one loop iteration with the current server counters.
// It must be called from the goroutine that drives the server.
func (m *Metrics) Observe(st server.Stats) {
	m.iterations.Inc()
	m.requests.WithLabelValues("served").Add(float64(st.Served - m.last.Served))
	m.requests.WithLabelValues("dropped").Add(float64(st.Dropped - m.last.Dropped))
	m.requests.WithLabelValues("faulted").Add(float64(st.Faulted - m.last.Faulted))
	m.last = st
}

// Report counts a transition and records the new value.
func (m *Metrics) Report(t tracker.Transition) {
	m.transitions.WithLabelValues(t.Channel).Inc()
	m.values.WithLabelValues(t.Channel).Set(float64(t.New))
}

// Seed records initial channel values without counting transitions.
func (m *Metrics) Seed(snap tracker.Snapshot) {
	for _, r := range snap {
		m.values.WithLabelValues(r.Key()).Set(float64(r.Value))
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
