// Package closure finds the variables that can influence a target statement
// through chains of shared variables in the background knowledge.
//
// The result is diagnostic. Declared variables outside the closure are
// sampled like any other; the report only says the effort is wasted.
package closure

import (
	"sort"

	"demski/internal/logging"
	"demski/internal/logic"
)

// Report is the outcome of a closure analysis.
type Report struct {
	Reachable  []string // sorted
	Irrelevant []string // declared but unreachable, in declaration order
	Passes     int      // full passes over the background until the fixed point
}

// Wasted reports whether some declared variable cannot affect the target.
func (r Report) Wasted() bool { return len(r.Irrelevant) > 0 }

// Reachable returns the variables reachable from target. It starts from the
// target's own variables and repeatedly unions in every background sentence
// that shares a variable with the set, until a pass adds nothing.
func Reachable(kb []*logic.Expr, target *logic.Expr) (set map[string]struct{}, passes int) {
	set = make(map[string]struct{})
	target.CollectVars(set)

	sentenceVars := make([]map[string]struct{}, len(kb))
	for i, e := range kb {
		sentenceVars[i] = make(map[string]struct{})
		e.CollectVars(sentenceVars[i])
	}

	for {
		passes++
		progress := false
		for _, vars := range sentenceVars {
			if !intersects(vars, set) || subset(vars, set) {
				continue
			}
			for name := range vars {
				set[name] = struct{}{}
			}
			progress = true
		}
		if !progress {
			return set, passes
		}
	}
}

// Analyze computes the closure and compares it with the declared names.
func Analyze(declared []string, kb []*logic.Expr, target *logic.Expr) Report {
	set, passes := Reachable(kb, target)
	r := Report{Passes: passes, Reachable: sortedKeys(set)}
	for _, name := range declared {
		if _, ok := set[name]; !ok {
			r.Irrelevant = append(r.Irrelevant, name)
		}
	}

	if r.Wasted() {
		logging.ClosureWarn("%d of %d declared variables cannot affect the target: %v", len(r.Irrelevant), len(declared), r.Irrelevant)
	} else {
		logging.Closure("all %d declared variables can affect the target (%d passes)", len(declared), passes)
	}
	return r
}

func intersects(a, b map[string]struct{}) bool {
	for name := range a {
		if _, ok := b[name]; ok {
			return true
		}
	}
	return false
}

func subset(a, b map[string]struct{}) bool {
	for name := range a {
		if _, ok := b[name]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
