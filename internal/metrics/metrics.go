// Package metrics exports test progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retroenv/chipcheck/internal/sweep"
)

const namespace = "chipcheck"

const shutdownTimeout = 5 * time.Second

// Metrics holds the collectors of a test run.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	failedCycles    prometheus.Counter
	cycleDuration   prometheus.Histogram
	mismatches      *prometheus.CounterVec
	patternFailures *prometheus.CounterVec
	captures        *prometheus.CounterVec
}

// New creates the collectors and registers them in a new registry.
func New(chip string) *Metrics {
	labels := prometheus.Labels{"chip": chip}
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cycles_total",
			Help:        "Completed test cycles",
			ConstLabels: labels,
		}),
		failedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "failed_cycles_total",
			Help:        "Test cycles with at least one failed pattern",
			ConstLabels: labels,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "cycle_duration_seconds",
			Help:        "Time to run all patterns of a cycle",
			Buckets:     []float64{0.01, 0.1, 1, 10, 60, 600},
			ConstLabels: labels,
		}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "mismatches_total",
			Help:        "Verify reads that did not return the written value",
			ConstLabels: labels,
		}, []string{"pattern"}),
		patternFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pattern_failures_total",
			Help:        "Cycles in which a pattern failed",
			ConstLabels: labels,
		}, []string{"pattern"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "captures_total",
			Help:        "ROM and PLA captures by verification result",
			ConstLabels: labels,
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.cycles, m.failedCycles, m.cycleDuration,
		m.mismatches, m.patternFailures, m.captures)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Mismatch counts a mismatch, it is registered with sweep.OnMismatch.
func (m *Metrics) Mismatch(mm sweep.Mismatch) {
	m.mismatches.WithLabelValues(mm.Pattern).Inc()
}

// CycleDone counts a cycle, it is registered with sweep.OnCycle.
func (m *Metrics) CycleDone(result sweep.CycleResult) {
	m.cycles.Inc()
	m.cycleDuration.Observe(result.Duration.Seconds())
	if result.Passed() {
		return
	}
	m.failedCycles.Inc()
	for _, name := range result.Failed {
		m.patternFailures.WithLabelValues(name).Inc()
	}
}

// Capture counts a ROM or PLA capture.
func (m *Metrics) Capture(verified, matched bool) {
	result := "unverified"
	if verified {
		result = "mismatch"
		if matched {
			result = "match"
		}
	}
	m.captures.WithLabelValues(result).Inc()
}

// Serve serves the metrics on addr until the context is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}
	return nil
}
