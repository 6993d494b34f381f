// Package oracle defines the satisfiability capability used by the samplers
// and a gini-backed implementation of it.
package oracle

import (
	"fmt"

	"demski/internal/logic"
	"demski/internal/types"
)

// Result is the answer to a satisfiability check.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Oracle decides satisfiability of the conjunction of everything asserted in
// the live scopes. Push opens a scope, Pop discards the innermost one, and
// Reset clears every assertion. Implementations are not safe for concurrent
// use; parallel samplers give each worker its own Oracle.
type Oracle interface {
	Add(e *logic.Expr) error
	Push()
	Pop()
	Check() (Result, error)
	Reset()
}

// Factory builds a fresh Oracle.
type Factory func() Oracle

// Tentative checks e against the current scope. If the scope plus e is
// satisfiable, e stays asserted in the current scope; otherwise nothing
// changes. The scope depth is the same on return.
func Tentative(o Oracle, e *logic.Expr) (Result, error) {
	o.Push()
	if err := o.Add(e); err != nil {
		o.Pop()
		return Unknown, err
	}
	res, err := o.Check()
	o.Pop()
	if err != nil {
		return Unknown, err
	}
	if res == Sat {
		if err := o.Add(e); err != nil {
			return Unknown, err
		}
	}
	return res, nil
}

// Require maps Unknown to types.ErrOracleUnknown so callers only branch on
// Sat and Unsat.
func Require(res Result, err error, what string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	switch res {
	case Sat:
		return true, nil
	case Unsat:
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", what, types.ErrOracleUnknown)
}
