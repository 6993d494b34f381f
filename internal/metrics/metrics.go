// Package metrics records sampler, oracle and updater activity on a private
// Prometheus registry. There is no HTTP endpoint: a run dumps the registry
// in the text exposition format when asked to.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "demski"

// Recorder holds the collectors of one process.
type Recorder struct {
	registry *prometheus.Registry

	// IterationsTotal counts completed sampling iterations.
	// Labels: target ("hit", "miss")
	IterationsTotal *prometheus.CounterVec

	// IterationSeconds measures one sampling iteration.
	IterationSeconds prometheus.Histogram

	// RejectionsTotal counts rejected uniform-integer draws.
	RejectionsTotal prometheus.Counter

	// ChecksTotal counts oracle checks.
	// Labels: result ("sat", "unsat", "unknown")
	ChecksTotal *prometheus.CounterVec

	// CheckSeconds measures one oracle check.
	CheckSeconds prometheus.Histogram

	// UpdatedPathsTotal counts paths examined by consumptive updates.
	// Labels: outcome ("kept", "dropped")
	UpdatedPathsTotal *prometheus.CounterVec
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		IterationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "iterations_total",
			Help:      "Completed sampling iterations by target outcome",
		}, []string{"target"}),
		IterationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "iteration_seconds",
			Help:      "Sampling iteration duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		RejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "uniform_rejections_total",
			Help:      "Uniform-integer draws rejected as inconsistent",
		}),
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "checks_total",
			Help:      "Satisfiability checks by result",
		}, []string{"result"}),
		CheckSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "check_seconds",
			Help:      "Satisfiability check duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		UpdatedPathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "paths_total",
			Help:      "Paths examined by consumptive updates by outcome",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(
		r.IterationsTotal,
		r.IterationSeconds,
		r.RejectionsTotal,
		r.ChecksTotal,
		r.CheckSeconds,
		r.UpdatedPathsTotal,
	)
	return r
}

// ObserveIteration records one finished sampling iteration.
func (r *Recorder) ObserveIteration(elapsed time.Duration, hit bool) {
	if r == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	r.IterationsTotal.WithLabelValues(label).Inc()
	r.IterationSeconds.Observe(elapsed.Seconds())
}

// ObserveRejection records one rejected uniform-integer draw.
func (r *Recorder) ObserveRejection() {
	if r == nil {
		return
	}
	r.RejectionsTotal.Inc()
}

// ObserveCheck records one oracle check.
func (r *Recorder) ObserveCheck(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.ChecksTotal.WithLabelValues(result).Inc()
	r.CheckSeconds.Observe(elapsed.Seconds())
}

// ObserveUpdatedPath records whether a path survived an update.
func (r *Recorder) ObserveUpdatedPath(kept bool) {
	if r == nil {
		return
	}
	outcome := "dropped"
	if kept {
		outcome = "kept"
	}
	r.UpdatedPathsTotal.WithLabelValues(outcome).Inc()
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteText writes every metric family in the text exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
