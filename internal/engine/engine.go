// Package engine runs a complete session for one problem: the closure
// diagnostic, the prior sampling and, when the problem carries additional
// knowledge, the consumptive update.
package engine

import (
	"context"
	"fmt"
	"time"

	"demski/internal/closure"
	"demski/internal/input"
	"demski/internal/logging"
	"demski/internal/metrics"
	"demski/internal/oracle"
	"demski/internal/posterior"
	"demski/internal/sampler"
)

// Options controls a session.
type Options struct {
	Duration     time.Duration // wall-clock sampling budget, 0 for none
	MaxSamples   int           // 0 = unlimited
	Workers      int
	Seed         int64 // 0 picks one from the clock
	CheckTimeout time.Duration
	Metrics      *metrics.Recorder // may be nil
}

// Factory returns an oracle factory that honors the check timeout and
// reports checks to the metrics recorder.
func (o Options) Factory() oracle.Factory {
	opts := []oracle.Option{oracle.WithCheckTimeout(o.CheckTimeout)}
	if o.Metrics != nil {
		rec := o.Metrics
		opts = append(opts, oracle.WithObserver(func(res oracle.Result, d time.Duration) {
			rec.ObserveCheck(res.String(), d)
		}))
	}
	return oracle.NewFactory(opts...)
}

// Result is the outcome of a session.
type Result struct {
	Population     *sampler.Population // prior samples
	InitialSamples int
	InitialHits    int

	Updated        bool
	Posterior      *sampler.Population // nil unless Updated
	UpdatedSamples int
	UpdatedHits    int

	Closure  closure.Report
	Seed     int64
	Duration time.Duration
}

// InitialProbability is the prior estimate.
func (r *Result) InitialProbability() float64 { return r.Population.Probability() }

// UpdatedProbability is the posterior estimate, or 0 without an update.
func (r *Result) UpdatedProbability() float64 {
	if !r.Updated {
		return 0
	}
	return r.Posterior.Probability()
}

// String renders "hits/samples", followed by the updated ratio when an
// update ran.
func (r *Result) String() string {
	s := fmt.Sprintf("%d/%d", r.InitialHits, r.InitialSamples)
	if r.Updated {
		s += fmt.Sprintf(" -> %d/%d", r.UpdatedHits, r.UpdatedSamples)
	}
	return s
}

// Run executes a session for p.
func Run(ctx context.Context, p *input.Problem, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "session")
	start := time.Now()

	report := closure.Analyze(p.Registry.Names(), p.Background, p.Target)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	factory := opts.Factory()
	s := sampler.New(p.Registry, p.Background, p.Target, factory,
		sampler.WithWorkers(opts.Workers),
		sampler.WithSeed(seed),
		sampler.WithMetrics(opts.Metrics),
	)
	pop, err := s.Run(ctx, sampler.NewBudget(opts.Duration, opts.MaxSamples))
	if err != nil {
		return nil, fmt.Errorf("prior sampling failed: %w", err)
	}

	res := &Result{
		Population:     pop,
		InitialSamples: pop.Len(),
		InitialHits:    pop.Hits,
		Closure:        report,
		Seed:           seed,
	}

	if p.HasUpdate {
		post, err := Condition(ctx, p, pop, opts)
		if err != nil {
			return nil, err
		}
		res.Updated = true
		res.Posterior = post
		res.UpdatedSamples = post.Len()
		res.UpdatedHits = post.Hits
	}

	res.Duration = time.Since(start)
	timer.Stop()
	logging.Engine("session %s finished: %s", sourceName(p), res)
	return res, nil
}

// Condition runs the consumptive update of pop on p's background followed
// by its update sentences.
func Condition(ctx context.Context, p *input.Problem, pop *sampler.Population, opts Options) (*sampler.Population, error) {
	post, err := posterior.New(opts.Factory()(), opts.Metrics).Update(ctx, pop, p.Target, p.Knowledge())
	if err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}
	if post.Len() == 0 {
		logging.Get(logging.CategoryEngine).Warn("no sample survived the update; the posterior estimate is undefined")
	}
	return post, nil
}

func sourceName(p *input.Problem) string {
	if p.Source == "" {
		return "<inline>"
	}
	return p.Source
}
