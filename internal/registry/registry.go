// Package registry parses variable declarations into typed variable
// definitions. A Registry is built once per input session and then shared,
// read-only, by the parser and the samplers.
package registry

import (
	"fmt"
	"strconv"
	"strings"

	"demski/internal/types"
)

// Kind distinguishes the two variable families.
type Kind int

const (
	// Boolean variables are asserted true with probability Prior before
	// consistency enforcement.
	Boolean Kind = iota
	// Uniform variables take an integer value drawn uniformly from
	// [Lower, Upper].
	Uniform
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "bool"
	case Uniform:
		return "unif"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultPrior is the meta-prior of a boolean declared without one.
const DefaultPrior = 0.5

// MaxDomainSize bounds the number of values of a uniform variable. The
// oracle encodes each value as its own input, and comparing two variables
// costs the product of their domain sizes.
const MaxDomainSize = 1 << 12

// Variable is an immutable variable definition.
type Variable struct {
	Name  string
	Kind  Kind
	Prior float64 // Boolean only
	Lower int     // Uniform only, inclusive
	Upper int     // Uniform only, inclusive
}

// IsBool reports whether v is a biased boolean.
func (v *Variable) IsBool() bool { return v.Kind == Boolean }

// DomainSize is the number of values v can take.
func (v *Variable) DomainSize() int {
	if v.Kind == Uniform {
		return v.Upper - v.Lower + 1
	}
	return 2
}

// String renders v in declaration syntax.
func (v *Variable) String() string {
	if v.Kind == Uniform {
		return fmt.Sprintf("unif %s %d %d", v.Name, v.Lower, v.Upper)
	}
	return fmt.Sprintf("bool %s %s", v.Name, strconv.FormatFloat(v.Prior, 'g', -1, 64))
}

// Lookup resolves a variable name. *Registry implements it.
type Lookup interface {
	Lookup(name string) (*Variable, bool)
}

// Registry maps names to variables and remembers declaration order.
type Registry struct {
	byName map[string]*Variable
	order  []*Variable
}

// New builds a registry from already-constructed variables.
func New(vars ...*Variable) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Variable, len(vars))}
	for _, v := range vars {
		if err := r.add(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(v *Variable) error {
	if err := validateName(v.Name); err != nil {
		return err
	}
	if v.Kind == Uniform {
		if err := checkDomain(v); err != nil {
			return err
		}
	}
	if _, dup := r.byName[v.Name]; dup {
		return types.NewConfigError("variable %s declared twice", v.Name)
	}
	r.byName[v.Name] = v
	r.order = append(r.order, v)
	return nil
}

func checkDomain(v *Variable) error {
	if v.Lower > v.Upper {
		return types.NewConfigError("uniform variable %s has lower bound %d above upper bound %d", v.Name, v.Lower, v.Upper)
	}
	// Upper >= Lower, so the unsigned difference is exact even when the
	// signed one overflows.
	if width := uint64(v.Upper) - uint64(v.Lower); width >= MaxDomainSize {
		return types.NewConfigError("uniform variable %s spans more than %d values", v.Name, MaxDomainSize)
	}
	return nil
}

// Lookup implements Lookup.
func (r *Registry) Lookup(name string) (*Variable, bool) {
	v, ok := r.byName[name]
	return v, ok
}

// Variables returns the variables in declaration order. The slice is a copy.
func (r *Registry) Variables() []*Variable {
	out := make([]*Variable, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the variable names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, v := range r.order {
		out[i] = v.Name
	}
	return out
}

// Len is the number of declared variables.
func (r *Registry) Len() int { return len(r.order) }

// ParseDeclarations parses declaration strings. Blank declarations are
// skipped. Recognized forms:
//
//	A             boolean, prior 0.5
//	A 0.3         boolean, prior 0.3
//	bool A [0.3]  boolean, explicit or default prior
//	unif X 1 6    uniform integer in [1, 6]
func ParseDeclarations(decls []string) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Variable, len(decls))}
	for _, d := range decls {
		fields := strings.Fields(d)
		if len(fields) == 0 {
			continue
		}
		v, err := parseDeclaration(fields)
		if err != nil {
			return nil, err
		}
		if err := r.add(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func parseDeclaration(fields []string) (*Variable, error) {
	switch strings.ToLower(fields[0]) {
	case "bool", "boolean":
		if len(fields) < 2 || len(fields) > 3 {
			return nil, types.NewConfigError("malformed boolean declaration %q: want bool <name> [<prior>]", strings.Join(fields, " "))
		}
		return newBool(fields[1], fields[2:])
	case "unif", "uniform":
		if len(fields) != 4 {
			return nil, types.NewConfigError("malformed uniform declaration %q: want unif <name> <lower> <upper>", strings.Join(fields, " "))
		}
		lower, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, &types.ConfigError{Reason: fmt.Sprintf("lower bound of %s is not an integer", fields[1]), Err: err}
		}
		upper, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &types.ConfigError{Reason: fmt.Sprintf("upper bound of %s is not an integer", fields[1]), Err: err}
		}
		return &Variable{Name: fields[1], Kind: Uniform, Lower: lower, Upper: upper}, nil
	}

	if len(fields) > 2 {
		return nil, types.NewConfigError("malformed declaration %q", strings.Join(fields, " "))
	}
	return newBool(fields[0], fields[1:])
}

func newBool(name string, prior []string) (*Variable, error) {
	p := DefaultPrior
	if len(prior) == 1 {
		var err error
		p, err = strconv.ParseFloat(prior[0], 64)
		if err != nil {
			return nil, &types.ConfigError{Reason: fmt.Sprintf("prior of %s is not a number", name), Err: err}
		}
		if p < 0 || p > 1 {
			return nil, types.NewConfigError("prior of %s is %v, outside [0, 1]", name, p)
		}
	}
	return &Variable{Name: name, Kind: Boolean, Prior: p}, nil
}
