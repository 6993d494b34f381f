// Package sampler implements the Demski prior: random, consistency-checked
// complete assignments drawn under a background theory, and the hit rate of
// a target statement over them.
package sampler

import (
	"fmt"
	"strconv"
	"strings"

	"demski/internal/logic"
	"demski/internal/registry"
)

// Literal is one variable's accepted value in a path.
type Literal struct {
	Var  *registry.Variable
	Bool bool // Boolean variables
	Int  int  // Uniform variables
}

// Expr returns the assertion this literal stands for: A, not A, or X = n.
func (l Literal) Expr() *logic.Expr {
	if l.Var.IsBool() {
		if l.Bool {
			return logic.Var(l.Var)
		}
		return logic.Not(logic.Var(l.Var))
	}
	return logic.Eq(logic.Var(l.Var), logic.Int(l.Int))
}

func (l Literal) String() string {
	if l.Var.IsBool() {
		if l.Bool {
			return l.Var.Name
		}
		return "not " + l.Var.Name
	}
	return l.Var.Name + " = " + strconv.Itoa(l.Int)
}

// Path is one complete assignment in the order the variables were visited.
type Path []Literal

// Exprs returns the assertions of every literal.
func (p Path) Exprs() []*logic.Expr {
	out := make([]*logic.Expr, len(p))
	for i, l := range p {
		out[i] = l.Expr()
	}
	return out
}

// Assignment converts p for direct evaluation.
func (p Path) Assignment() logic.Assignment {
	a := logic.NewAssignment()
	for _, l := range p {
		if l.Var.IsBool() {
			a.Bools[l.Var.Name] = l.Bool
		} else {
			a.Ints[l.Var.Name] = l.Int
		}
	}
	return a
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, l := range p {
		parts[i] = l.String()
	}
	return strings.Join(parts, ", ")
}

// Population is the accumulated output of a sampler run or an update.
type Population struct {
	Paths []Path
	Hits  int
}

// Len is the number of paths.
func (p *Population) Len() int { return len(p.Paths) }

// Probability is Hits/Len, or 0 for an empty population.
func (p *Population) Probability() float64 {
	if len(p.Paths) == 0 {
		return 0
	}
	return float64(p.Hits) / float64(len(p.Paths))
}

// String renders "hits/samples".
func (p *Population) String() string {
	return fmt.Sprintf("%d/%d", p.Hits, len(p.Paths))
}
