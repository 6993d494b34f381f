// Package posterior conditions an existing sample population on new
// knowledge by rejection: paths inconsistent with the new knowledge are
// dropped and the target hit count is recomputed over the survivors.
// No path is ever added.
package posterior

import (
	"context"
	"fmt"

	"demski/internal/logging"
	"demski/internal/logic"
	"demski/internal/metrics"
	"demski/internal/oracle"
	"demski/internal/sampler"
)

// Updater runs consumptive updates with one oracle.
type Updater struct {
	oracle  oracle.Oracle
	metrics *metrics.Recorder
}

// New returns an Updater. rec may be nil.
func New(o oracle.Oracle, rec *metrics.Recorder) *Updater {
	return &Updater{oracle: o, metrics: rec}
}

// Update keeps the paths of pop consistent with knowledge and counts the
// kept paths under which target is satisfiable. An unsatisfiable knowledge
// base is a ConfigError. The input population is not modified; kept paths
// are shared with it.
func (u *Updater) Update(ctx context.Context, pop *sampler.Population, target *logic.Expr, knowledge []*logic.Expr) (*sampler.Population, error) {
	if err := sampler.CheckKnowledge(u.oracle, knowledge); err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategoryUpdate, "consumptive update")
	out := &sampler.Population{}
	for i, path := range pop.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kept, hit, err := u.condition(path, target, knowledge)
		if err != nil {
			return nil, fmt.Errorf("path %d: %w", i, err)
		}
		u.metrics.ObserveUpdatedPath(kept)
		if !kept {
			logging.UpdateDebug("dropped path %d: %s", i, path)
			continue
		}
		out.Paths = append(out.Paths, path)
		if hit {
			out.Hits++
		}
	}

	logging.Update("update kept %d of %d paths, %s hit the target", out.Len(), pop.Len(), out)
	timer.Stop()
	return out, nil
}

func (u *Updater) condition(path sampler.Path, target *logic.Expr, knowledge []*logic.Expr) (kept, hit bool, err error) {
	o := u.oracle
	o.Reset()
	for _, e := range knowledge {
		if err := o.Add(e); err != nil {
			return false, false, err
		}
	}
	for _, e := range path.Exprs() {
		if err := o.Add(e); err != nil {
			return false, false, err
		}
	}
	res, err := o.Check()
	kept, err = oracle.Require(res, err, "checking path")
	if err != nil || !kept {
		return false, false, err
	}

	res, err = oracle.Tentative(o, target)
	hit, err = oracle.Require(res, err, "checking target")
	if err != nil {
		return false, false, err
	}
	return true, hit, nil
}

// ConsumptiveUpdate is Update with a fresh oracle from factory.
func ConsumptiveUpdate(ctx context.Context, pop *sampler.Population, target *logic.Expr, knowledge []*logic.Expr, factory oracle.Factory) (*sampler.Population, error) {
	return New(factory(), nil).Update(ctx, pop, target, knowledge)
}
