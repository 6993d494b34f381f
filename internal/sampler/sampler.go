package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"demski/internal/logging"
	"demski/internal/logic"
	"demski/internal/metrics"
	"demski/internal/oracle"
	"demski/internal/registry"
	"demski/internal/types"
)

const (
	// Rejection streaks of a single uniform variable are reported at this
	// length and every further power of ten.
	rejectionWarnAt = 1000

	slowIteration = time.Second
)

// Sampler draws Demski prior samples for one problem.
type Sampler struct {
	vars    []*registry.Variable
	kb      []*logic.Expr
	target  *logic.Expr
	factory oracle.Factory

	workers int
	seed    uint64
	metrics *metrics.Recorder
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithWorkers runs n independent workers, each with its own oracle.
// Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 1 {
			s.workers = n
		}
	}
}

// WithSeed fixes the random source. Zero seeds from the clock.
func WithSeed(seed int64) Option {
	return func(s *Sampler) { s.seed = uint64(seed) }
}

// WithMetrics records iterations and rejections on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Sampler) { s.metrics = r }
}

// New returns a Sampler over every variable of reg.
func New(reg *registry.Registry, kb []*logic.Expr, target *logic.Expr, factory oracle.Factory, opts ...Option) *Sampler {
	s := &Sampler{
		vars:    reg.Variables(),
		kb:      kb,
		target:  target,
		factory: factory,
		workers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == 0 {
		s.seed = uint64(time.Now().UnixNano())
	}
	return s
}

// CheckKnowledge asserts kb into a fresh scope of o and checks it. An
// unsatisfiable knowledge base is a ConfigError.
func CheckKnowledge(o oracle.Oracle, kb []*logic.Expr) error {
	o.Reset()
	for _, e := range kb {
		if err := o.Add(e); err != nil {
			return fmt.Errorf("failed to assert %s: %w", e, err)
		}
	}
	res, err := o.Check()
	sat, err := oracle.Require(res, err, "checking knowledge base")
	if err != nil {
		return err
	}
	if !sat {
		return types.NewConfigError("knowledge base is unsatisfiable")
	}
	return nil
}

// Run samples until budget runs out. The knowledge base is checked first;
// nothing is sampled when it is inconsistent.
func (s *Sampler) Run(ctx context.Context, budget *Budget) (*Population, error) {
	if !budget.Bounded() {
		return nil, types.NewConfigError("sampling needs a time limit or a sample cap")
	}

	first := s.factory()
	if err := CheckKnowledge(first, s.kb); err != nil {
		return nil, err
	}

	logging.Sampler("sampling %d variables under %d background sentences with %d worker(s)", len(s.vars), len(s.kb), s.workers)
	timer := logging.StartTimer(logging.CategorySampler, "sampling")

	pops := make([]*Population, s.workers)
	if s.workers == 1 {
		pop, err := s.work(ctx, first, 0, budget)
		if err != nil {
			return nil, err
		}
		pops[0] = pop
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < s.workers; w++ {
			o := first
			if w > 0 {
				o = s.factory()
			}
			g.Go(func() error {
				pop, err := s.work(gctx, o, w, budget)
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				pops[w] = pop
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := &Population{}
	for _, p := range pops {
		out.Paths = append(out.Paths, p.Paths...)
		out.Hits += p.Hits
	}
	elapsed := timer.Stop()
	logging.Sampler("sampling finished: %s (%.4f) in %v", out, out.Probability(), elapsed)
	return out, nil
}

func (s *Sampler) work(ctx context.Context, o oracle.Oracle, worker int, budget *Budget) (*Population, error) {
	rng := rand.New(rand.NewPCG(s.seed, uint64(worker)))
	pop := &Population{}
	for budget.Claim() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timer := logging.StartTimer(logging.CategorySampler, "iteration")
		path, hit, err := s.iterate(ctx, o, rng)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveIteration(timer.StopWithThreshold(slowIteration), hit)

		pop.Paths = append(pop.Paths, path)
		if hit {
			pop.Hits++
		}
	}
	return pop, nil
}

// iterate draws one path and reports whether the target is consistent with it.
func (s *Sampler) iterate(ctx context.Context, o oracle.Oracle, rng *rand.Rand) (Path, bool, error) {
	o.Reset()
	for _, e := range s.kb {
		if err := o.Add(e); err != nil {
			return nil, false, err
		}
	}

	path := make(Path, 0, len(s.vars))
	for _, v := range drawOrder(s.vars, rng) {
		var (
			lit Literal
			err error
		)
		if v.IsBool() {
			lit, err = s.decideBool(o, v, rng)
		} else {
			lit, err = s.decideUniform(ctx, o, v, rng)
		}
		if err != nil {
			return nil, false, err
		}
		path = append(path, lit)
	}

	o.Push()
	defer o.Pop()
	if err := o.Add(s.target); err != nil {
		return nil, false, err
	}
	res, err := o.Check()
	hit, err := oracle.Require(res, err, "checking target")
	if err != nil {
		return nil, false, err
	}
	return path, hit, nil
}

// decideBool draws v's polarity from its prior. If the drawn polarity is
// inconsistent, the opposite one is asserted without a check: the scope was
// satisfiable before the draw and a boolean has no third value, so every
// model of the scope gives v the opposite polarity.
func (s *Sampler) decideBool(o oracle.Oracle, v *registry.Variable, rng *rand.Rand) (Literal, error) {
	lit := Literal{Var: v, Bool: rng.Float64() < v.Prior}
	res, err := oracle.Tentative(o, lit.Expr())
	ok, err := oracle.Require(res, err, "checking "+lit.String())
	if err != nil {
		return Literal{}, err
	}
	if ok {
		return lit, nil
	}
	lit.Bool = !lit.Bool
	if err := o.Add(lit.Expr()); err != nil {
		return Literal{}, err
	}
	return lit, nil
}

// decideUniform draws values of v until one is consistent. There is no
// retry cap: a variable whose consistent values are rare takes long, and one
// with none never finishes unless ctx is canceled.
func (s *Sampler) decideUniform(ctx context.Context, o oracle.Oracle, v *registry.Variable, rng *rand.Rand) (Literal, error) {
	warnAt := rejectionWarnAt
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Literal{}, err
		}
		lit := Literal{Var: v, Int: v.Lower + rng.IntN(v.DomainSize())}
		res, err := oracle.Tentative(o, lit.Expr())
		ok, err := oracle.Require(res, err, "checking "+lit.String())
		if err != nil {
			return Literal{}, err
		}
		if ok {
			return lit, nil
		}
		s.metrics.ObserveRejection()
		if attempt == warnAt {
			logging.SamplerWarn("uniform variable %s rejected %d draws in a row", v.Name, attempt)
			warnAt *= 10
		}
	}
}
