package closure

import (
	"fmt"
	"sort"

	"demski/internal/logic"
	"demski/internal/mangle"
)

// reachability is the same fixed point as Reachable, stated as rules:
// a variable is reachable if the target mentions it, or if it shares a
// sentence with a reachable variable.
const reachability = `
Decl occurs(Sentence, Var).
Decl target(Var).
Decl reachable(Var).

reachable(V) :- target(V).
reachable(V) :- occurs(S, V), occurs(S, W), reachable(W).
`

// Program evaluates the reachability rules. One Program can be reused for
// several problems; each Reachable call starts from an empty fact store.
type Program struct {
	engine *mangle.Engine
}

// NewProgram loads the reachability rules.
func NewProgram() (*Program, error) {
	cfg := mangle.DefaultConfig()
	cfg.AutoEval = false
	engine := mangle.NewEngine(cfg)
	if err := engine.LoadSchemaString(reachability); err != nil {
		return nil, err
	}
	return &Program{engine: engine}, nil
}

// Reachable computes the reachable set, sorted. Variable names are passed
// as string constants.
func (p *Program) Reachable(kb []*logic.Expr, target *logic.Expr) ([]string, error) {
	p.engine.Clear()

	for _, name := range target.Vars() {
		if err := p.engine.AddFact("target", name); err != nil {
			return nil, err
		}
	}
	var facts []mangle.Fact
	for i, e := range kb {
		sentence := fmt.Sprintf("s%d", i)
		for _, name := range e.Vars() {
			facts = append(facts, mangle.Fact{Predicate: "occurs", Args: []interface{}{sentence, name}})
		}
	}
	if err := p.engine.AddFacts(facts); err != nil {
		return nil, err
	}
	if err := p.engine.RecomputeRules(); err != nil {
		return nil, fmt.Errorf("failed to evaluate reachability: %w", err)
	}

	derived, err := p.engine.GetFacts("reachable")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(derived))
	for _, f := range derived {
		name, ok := f.Args[0].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected reachable fact %s", f)
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// FactCounts reports the facts per predicate left by the last Reachable call.
func (p *Program) FactCounts() map[string]int {
	return p.engine.GetStats().PredicateCounts
}

// Datalog computes the reachable set with a fresh Program. It must agree
// with Reachable; the closure command fails with both sets when they differ.
func Datalog(kb []*logic.Expr, target *logic.Expr) ([]string, error) {
	p, err := NewProgram()
	if err != nil {
		return nil, err
	}
	return p.Reachable(kb, target)
}
