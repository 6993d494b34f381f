package oracle

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-air/gini"
	glogic "github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"demski/internal/logging"
	"demski/internal/logic"
	"demski/internal/registry"
)

// Stats counts checks by outcome.
type Stats struct {
	Checks  int64
	Sat     int64
	Unsat   int64
	Unknown int64
}

// Solver is an Oracle over gini. Assertions are compiled into one
// and-inverter circuit; every Check Tseitin-encodes the circuit into a fresh
// gini instance and solves under the live roots as assumptions.
//
// Uniform integer variables are one-hot over [Lower, Upper]. Their
// exactly-one axioms are asserted outside the scope stack and survive Pop.
type Solver struct {
	c      *glogic.C
	bools  map[string]z.Lit
	ints   map[string]oneHot
	axioms []z.Lit
	frames [][]z.Lit

	timeout  time.Duration
	observer func(Result, time.Duration)

	checks, sat, unsat, unknown atomic.Int64
}

type oneHot struct {
	lower int
	lits  []z.Lit // lits[i] means value lower+i
}

// Option configures a Solver.
type Option func(*Solver)

// WithCheckTimeout bounds each Check. A check that does not finish in time
// answers Unknown.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Solver) { s.timeout = d }
}

// WithObserver registers a callback run after every Check.
func WithObserver(fn func(Result, time.Duration)) Option {
	return func(s *Solver) { s.observer = fn }
}

// NewSolver returns an empty Solver.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// NewFactory returns a Factory producing Solvers with opts.
func NewFactory(opts ...Option) Factory {
	return func() Oracle { return NewSolver(opts...) }
}

// Reset implements Oracle.
func (s *Solver) Reset() {
	s.c = glogic.NewC()
	s.bools = make(map[string]z.Lit)
	s.ints = make(map[string]oneHot)
	s.axioms = nil
	s.frames = [][]z.Lit{nil}
}

// Push implements Oracle.
func (s *Solver) Push() {
	s.frames = append(s.frames, nil)
}

// Pop implements Oracle. Popping the base scope is a no-op.
func (s *Solver) Pop() {
	if len(s.frames) == 1 {
		logging.OracleWarn("pop without matching push")
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Depth is the number of open scopes above the base scope.
func (s *Solver) Depth() int { return len(s.frames) - 1 }

// Add implements Oracle.
func (s *Solver) Add(e *logic.Expr) error {
	if e.Sort() != logic.SortBool {
		return fmt.Errorf("cannot assert integer term %s", e)
	}
	m, err := s.compile(e)
	if err != nil {
		return err
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], m)
	return nil
}

// Check implements Oracle.
func (s *Solver) Check() (Result, error) {
	start := time.Now()
	res := s.solve()
	elapsed := time.Since(start)

	s.checks.Add(1)
	switch res {
	case Sat:
		s.sat.Add(1)
	case Unsat:
		s.unsat.Add(1)
	default:
		s.unknown.Add(1)
		logging.OracleWarn("check gave up after %v (timeout %v)", elapsed, s.timeout)
	}
	if s.observer != nil {
		s.observer(res, elapsed)
	}
	return res, nil
}

func (s *Solver) solve() Result {
	var assumptions []z.Lit
	collect := func(ms []z.Lit) bool {
		for _, m := range ms {
			switch m {
			case s.c.T:
			case s.c.F:
				return false
			default:
				assumptions = append(assumptions, m)
			}
		}
		return true
	}
	if !collect(s.axioms) {
		return Unsat
	}
	for _, f := range s.frames {
		if !collect(f) {
			return Unsat
		}
	}
	if len(assumptions) == 0 {
		return Sat
	}

	g := gini.New()
	s.c.ToCnf(g)
	g.Assume(assumptions...)

	var r int
	if s.timeout > 0 {
		r = g.GoSolve().Try(s.timeout)
	} else {
		r = g.Solve()
	}
	switch r {
	case 1:
		return Sat
	case -1:
		return Unsat
	}
	return Unknown
}

// Stats returns the check counters.
func (s *Solver) Stats() Stats {
	return Stats{
		Checks:  s.checks.Load(),
		Sat:     s.sat.Load(),
		Unsat:   s.unsat.Load(),
		Unknown: s.unknown.Load(),
	}
}

func (s *Solver) compile(e *logic.Expr) (z.Lit, error) {
	switch e.Op {
	case logic.OpVar:
		if !e.Var.IsBool() {
			return z.LitNull, fmt.Errorf("integer variable %s used as a statement", e.Var.Name)
		}
		return s.boolLit(e.Var), nil
	case logic.OpInt:
		return z.LitNull, fmt.Errorf("integer literal %d used as a statement", e.Value)
	case logic.OpNot:
		m, err := s.compile(e.Args[0])
		if err != nil {
			return z.LitNull, err
		}
		return m.Not(), nil
	}

	if e.Args[0].Sort() == logic.SortInt {
		return s.compare(e.Op, e.Args[0], e.Args[1])
	}

	a, err := s.compile(e.Args[0])
	if err != nil {
		return z.LitNull, err
	}
	b, err := s.compile(e.Args[1])
	if err != nil {
		return z.LitNull, err
	}
	switch e.Op {
	case logic.OpAnd:
		return s.c.And(a, b), nil
	case logic.OpOr:
		return s.c.Or(a, b), nil
	case logic.OpImplies:
		return s.c.Or(a.Not(), b), nil
	case logic.OpXor, logic.OpNotEqual:
		return s.xor(a, b), nil
	case logic.OpIff:
		return s.xor(a, b).Not(), nil
	}
	return z.LitNull, fmt.Errorf("operator %s does not apply to statements", e.Op)
}

func (s *Solver) xor(a, b z.Lit) z.Lit {
	return s.c.Or(s.c.And(a, b.Not()), s.c.And(a.Not(), b))
}

func (s *Solver) boolLit(v *registry.Variable) z.Lit {
	if m, ok := s.bools[v.Name]; ok {
		return m
	}
	m := s.c.Lit()
	s.bools[v.Name] = m
	return m
}

// term returns the one-hot encoding of an integer term. A literal is a
// single always-true slot.
func (s *Solver) term(e *logic.Expr) (oneHot, error) {
	switch e.Op {
	case logic.OpInt:
		return oneHot{lower: e.Value, lits: []z.Lit{s.c.T}}, nil
	case logic.OpVar:
		if e.Var.IsBool() {
			break
		}
		if h, ok := s.ints[e.Var.Name]; ok {
			return h, nil
		}
		h := s.declareInt(e.Var)
		s.ints[e.Var.Name] = h
		return h, nil
	}
	return oneHot{}, fmt.Errorf("%s is not an integer term", e)
}

// declareInt allocates the value literals of v and records its exactly-one
// axioms using a sequential at-most-one encoding: seen[i] holds iff some
// value at or below lower+i is chosen, and no value may be chosen once seen.
func (s *Solver) declareInt(v *registry.Variable) oneHot {
	n := v.DomainSize()
	h := oneHot{lower: v.Lower, lits: make([]z.Lit, n)}
	seen := s.c.F
	for i := range h.lits {
		h.lits[i] = s.c.Lit()
		if i > 0 {
			s.axioms = append(s.axioms, s.c.Or(h.lits[i].Not(), seen.Not()))
		}
		seen = s.c.Or(seen, h.lits[i])
	}
	s.axioms = append(s.axioms, seen)
	logging.OracleDebug("declared %s with %d one-hot values", v.Name, n)
	return h
}

func (s *Solver) compare(op logic.Op, left, right *logic.Expr) (z.Lit, error) {
	l, err := s.term(left)
	if err != nil {
		return z.LitNull, err
	}
	r, err := s.term(right)
	if err != nil {
		return z.LitNull, err
	}

	var holds func(a, b int) bool
	switch op {
	case logic.OpIff:
		holds = func(a, b int) bool { return a == b }
	case logic.OpNotEqual:
		holds = func(a, b int) bool { return a != b }
	case logic.OpLess:
		holds = func(a, b int) bool { return a < b }
	case logic.OpGreater:
		holds = func(a, b int) bool { return a > b }
	case logic.OpLessEq:
		holds = func(a, b int) bool { return a <= b }
	case logic.OpGreaterEq:
		holds = func(a, b int) bool { return a >= b }
	default:
		return z.LitNull, fmt.Errorf("operator %s does not apply to integers", op)
	}

	out := s.c.F
	for i, li := range l.lits {
		for j, rj := range r.lits {
			if holds(l.lower+i, r.lower+j) {
				out = s.c.Or(out, s.c.And(li, rj))
			}
		}
	}
	return out, nil
}
