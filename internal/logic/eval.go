package logic

import "fmt"

// Assignment binds variable names to values. Booleans and integers live in
// separate maps; a variable is looked up in the map matching its kind.
type Assignment struct {
	Bools map[string]bool
	Ints  map[string]int
}

// NewAssignment returns an empty assignment.
func NewAssignment() Assignment {
	return Assignment{Bools: make(map[string]bool), Ints: make(map[string]int)}
}

// Holds evaluates a boolean expression under a complete assignment.
func (e *Expr) Holds(a Assignment) (bool, error) {
	if e.Sort() != SortBool {
		return false, fmt.Errorf("%s is not a statement", e)
	}
	return e.evalBool(a)
}

func (e *Expr) evalBool(a Assignment) (bool, error) {
	switch e.Op {
	case OpVar:
		v, ok := a.Bools[e.Var.Name]
		if !ok {
			return false, fmt.Errorf("variable %s is unassigned", e.Var.Name)
		}
		return v, nil
	case OpNot:
		v, err := e.Args[0].evalBool(a)
		return !v, err
	}

	if e.Args[0].Sort() == SortInt {
		l, err := e.Args[0].evalInt(a)
		if err != nil {
			return false, err
		}
		r, err := e.Args[1].evalInt(a)
		if err != nil {
			return false, err
		}
		switch e.Op {
		case OpIff:
			return l == r, nil
		case OpNotEqual:
			return l != r, nil
		case OpLess:
			return l < r, nil
		case OpGreater:
			return l > r, nil
		case OpLessEq:
			return l <= r, nil
		case OpGreaterEq:
			return l >= r, nil
		}
		return false, fmt.Errorf("operator %s does not apply to integers", e.Op)
	}

	l, err := e.Args[0].evalBool(a)
	if err != nil {
		return false, err
	}
	r, err := e.Args[1].evalBool(a)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case OpAnd:
		return l && r, nil
	case OpOr:
		return l || r, nil
	case OpXor, OpNotEqual:
		return l != r, nil
	case OpImplies:
		return !l || r, nil
	case OpIff:
		return l == r, nil
	}
	return false, fmt.Errorf("operator %s does not apply to booleans", e.Op)
}

func (e *Expr) evalInt(a Assignment) (int, error) {
	switch e.Op {
	case OpInt:
		return e.Value, nil
	case OpVar:
		v, ok := a.Ints[e.Var.Name]
		if !ok {
			return 0, fmt.Errorf("variable %s is unassigned", e.Var.Name)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%s is not an integer term", e)
}
