// Package logic holds the expression tree for logical sentences over
// biased-boolean and uniform-integer variables, the parser that builds it,
// and a direct evaluator for complete assignments.
package logic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"demski/internal/registry"
)

// Op tags an expression node.
type Op int

const (
	OpVar Op = iota
	OpInt
	OpNot
	OpAnd
	OpOr
	OpXor
	OpImplies
	OpIff // boolean iff, or integer equality
	OpNotEqual
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
)

var opSymbols = map[Op]string{
	OpNot:       "not",
	OpAnd:       "and",
	OpOr:        "or",
	OpXor:       "xor",
	OpImplies:   "implies",
	OpIff:       "=",
	OpNotEqual:  "!=",
	OpLess:      "<",
	OpGreater:   ">",
	OpLessEq:    "<=",
	OpGreaterEq: ">=",
}

func (o Op) String() string {
	switch o {
	case OpVar:
		return "var"
	case OpInt:
		return "int"
	}
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsComparison reports whether o compares two integers by order.
func (o Op) IsComparison() bool {
	return o == OpLess || o == OpGreater || o == OpLessEq || o == OpGreaterEq
}

// Sort is the value type of an expression.
type Sort int

const (
	SortBool Sort = iota
	SortInt
)

func (s Sort) String() string {
	if s == SortInt {
		return "integer"
	}
	return "boolean"
}

// Expr is an immutable expression node. Var is set for OpVar, Value for
// OpInt, and Args holds one operand for OpNot and two for binary operators.
type Expr struct {
	Op    Op
	Var   *registry.Variable
	Value int
	Args  []*Expr
}

// Var references a declared variable.
func Var(v *registry.Variable) *Expr { return &Expr{Op: OpVar, Var: v} }

// Int is an integer literal.
func Int(n int) *Expr { return &Expr{Op: OpInt, Value: n} }

// Not negates a boolean expression.
func Not(x *Expr) *Expr { return &Expr{Op: OpNot, Args: []*Expr{x}} }

// Binary combines two operands with a binary operator.
func Binary(op Op, left, right *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{left, right}}
}

func And(l, r *Expr) *Expr     { return Binary(OpAnd, l, r) }
func Or(l, r *Expr) *Expr      { return Binary(OpOr, l, r) }
func Xor(l, r *Expr) *Expr     { return Binary(OpXor, l, r) }
func Implies(l, r *Expr) *Expr { return Binary(OpImplies, l, r) }
func Eq(l, r *Expr) *Expr      { return Binary(OpIff, l, r) }

// Sort returns the value type of e.
func (e *Expr) Sort() Sort {
	switch e.Op {
	case OpInt:
		return SortInt
	case OpVar:
		if e.Var.Kind == registry.Uniform {
			return SortInt
		}
	}
	return SortBool
}

// String renders e with every nested binary node parenthesized, so the
// grouping chosen by the parser is visible.
func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b, true)
	return b.String()
}

func (e *Expr) write(b *strings.Builder, top bool) {
	switch e.Op {
	case OpVar:
		b.WriteString(e.Var.Name)
	case OpInt:
		b.WriteString(strconv.Itoa(e.Value))
	case OpNot:
		b.WriteString("not ")
		e.Args[0].write(b, false)
	default:
		if !top {
			b.WriteByte('(')
		}
		e.Args[0].write(b, false)
		b.WriteByte(' ')
		b.WriteString(e.Op.String())
		b.WriteByte(' ')
		e.Args[1].write(b, false)
		if !top {
			b.WriteByte(')')
		}
	}
}

// CollectVars adds the names of the variables occurring in e to set.
func (e *Expr) CollectVars(set map[string]struct{}) {
	if e.Op == OpVar {
		set[e.Var.Name] = struct{}{}
		return
	}
	for _, a := range e.Args {
		a.CollectVars(set)
	}
}

// Vars returns the sorted names of the variables occurring in e.
func (e *Expr) Vars() []string {
	set := make(map[string]struct{})
	e.CollectVars(set)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Equal reports structural equality. Variables compare by name.
func (e *Expr) Equal(o *Expr) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Op != o.Op || len(e.Args) != len(o.Args) {
		return false
	}
	switch e.Op {
	case OpVar:
		return e.Var.Name == o.Var.Name
	case OpInt:
		return e.Value == o.Value
	}
	for i := range e.Args {
		if !e.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}
