package oracle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demski/internal/logic"
	"demski/internal/registry"
	"demski/internal/types"
)

type fixture struct {
	reg *registry.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg, err := registry.ParseDeclarations([]string{"A", "B", "C", "unif X 1 3", "unif Y 0 2"})
	require.NoError(t, err)
	return fixture{reg: reg}
}

func (f fixture) parse(t *testing.T, sentence string) *logic.Expr {
	t.Helper()
	e, err := logic.ParseSentence(sentence, f.reg)
	require.NoError(t, err)
	return e
}

func (f fixture) v(name string) *logic.Expr {
	v, _ := f.reg.Lookup(name)
	return logic.Var(v)
}

func mustCheck(t *testing.T, o Oracle) Result {
	t.Helper()
	res, err := o.Check()
	require.NoError(t, err)
	return res
}

func TestSolver_Conjunction(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	require.NoError(t, s.Add(f.parse(t, "A and B")))

	s.Push()
	require.NoError(t, s.Add(f.v("A")))
	require.NoError(t, s.Add(f.v("B")))
	assert.Equal(t, Sat, mustCheck(t, s))
	s.Pop()

	s.Push()
	require.NoError(t, s.Add(f.v("A")))
	require.NoError(t, s.Add(logic.Not(f.v("B"))))
	assert.Equal(t, Unsat, mustCheck(t, s))
	s.Pop()

	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, Sat, mustCheck(t, s))
}

func TestSolver_EmptyIsSat(t *testing.T) {
	s := NewSolver()
	assert.Equal(t, Sat, mustCheck(t, s))
}

func TestSolver_PopRestoresScope(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	require.NoError(t, s.Add(f.v("A")))

	s.Push()
	require.NoError(t, s.Add(logic.Not(f.v("A"))))
	assert.Equal(t, Unsat, mustCheck(t, s))
	s.Pop()
	assert.Equal(t, Sat, mustCheck(t, s))

	s.Pop()
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, Sat, mustCheck(t, s))
}

func TestSolver_Reset(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	require.NoError(t, s.Add(f.v("A")))
	require.NoError(t, s.Add(logic.Not(f.v("A"))))
	assert.Equal(t, Unsat, mustCheck(t, s))

	s.Reset()
	assert.Equal(t, Sat, mustCheck(t, s))
}

func TestSolver_UniformDomain(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		sentences []string
		want      Result
	}{
		{[]string{"X > 2"}, Sat},
		{[]string{"X > 2", "X < 3"}, Unsat},
		{[]string{"X = 1", "X = 2"}, Unsat},
		{[]string{"X = 7"}, Unsat},
		{[]string{"X != 7"}, Sat},
		{[]string{"X < 1"}, Unsat},
		{[]string{"X <= 1", "X >= 1"}, Sat},
		{[]string{"X = Y", "Y > 2"}, Unsat},
		{[]string{"X = Y", "X > 1", "Y < 3"}, Sat},
		{[]string{"X > Y", "Y >= 2", "X != 3"}, Unsat},
		{[]string{"(X = 2) implies A", "X = 2", "not A"}, Unsat},
		{[]string{"3 > 2"}, Sat},
		{[]string{"3 < 2"}, Unsat},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.sentences), func(t *testing.T) {
			s := NewSolver()
			for _, sentence := range tt.sentences {
				require.NoError(t, s.Add(f.parse(t, sentence)))
			}
			assert.Equal(t, tt.want, mustCheck(t, s))
		})
	}
}

func TestSolver_DomainAxiomsSurvivePop(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	s.Push()
	require.NoError(t, s.Add(f.parse(t, "X = 1")))
	s.Pop()

	// X was first seen inside the popped scope; it must still be exactly one value.
	require.NoError(t, s.Add(f.parse(t, "X != 1")))
	require.NoError(t, s.Add(f.parse(t, "X != 2")))
	require.NoError(t, s.Add(f.parse(t, "X != 3")))
	assert.Equal(t, Unsat, mustCheck(t, s))
}

func TestSolver_RejectsIntegerAssertion(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	assert.Error(t, s.Add(f.v("X")))
	assert.Error(t, s.Add(logic.Int(3)))
}

// Every sentence must be satisfiable together with a complete assignment
// exactly when direct evaluation says it holds.
func TestSolver_AgreesWithEvaluation(t *testing.T) {
	f := newFixture(t)
	sentences := []string{
		"A and B or C",
		"(A and B) or C",
		"A implies B implies C",
		"A xor B = C",
		"not (A = B)",
		"(X < Y) or A",
		"(X >= 2) = (Y != 1)",
		"((X > 1) and not B) implies (Y <= 0)",
	}
	for _, sentence := range sentences {
		e := f.parse(t, sentence)
		for _, a := range allAssignments() {
			want, err := e.Holds(a)
			require.NoError(t, err)

			s := NewSolver()
			require.NoError(t, s.Add(e))
			for _, lit := range assignmentExprs(f, a) {
				require.NoError(t, s.Add(lit))
			}
			got := mustCheck(t, s)
			if want {
				assert.Equal(t, Sat, got, "%s under %v", sentence, a)
			} else {
				assert.Equal(t, Unsat, got, "%s under %v", sentence, a)
			}
		}
	}
}

func allAssignments() []logic.Assignment {
	var out []logic.Assignment
	for mask := 0; mask < 8; mask++ {
		for x := 1; x <= 3; x++ {
			for y := 0; y <= 2; y++ {
				a := logic.NewAssignment()
				a.Bools["A"] = mask&1 != 0
				a.Bools["B"] = mask&2 != 0
				a.Bools["C"] = mask&4 != 0
				a.Ints["X"] = x
				a.Ints["Y"] = y
				out = append(out, a)
			}
		}
	}
	return out
}

func assignmentExprs(f fixture, a logic.Assignment) []*logic.Expr {
	var out []*logic.Expr
	for name, val := range a.Bools {
		if val {
			out = append(out, f.v(name))
		} else {
			out = append(out, logic.Not(f.v(name)))
		}
	}
	for name, val := range a.Ints {
		out = append(out, logic.Eq(f.v(name), logic.Int(val)))
	}
	return out
}

func TestTentative(t *testing.T) {
	f := newFixture(t)
	s := NewSolver()
	require.NoError(t, s.Add(f.parse(t, "A implies B")))
	require.NoError(t, s.Add(f.v("A")))

	res, err := Tentative(s, logic.Not(f.v("B")))
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, Sat, mustCheck(t, s), "rejected assertion must be rolled back")

	res, err = Tentative(s, f.v("C"))
	require.NoError(t, err)
	assert.Equal(t, Sat, res)
	assert.Equal(t, 0, s.Depth())

	// C is kept, so its negation now conflicts.
	res, err = Tentative(s, logic.Not(f.v("C")))
	require.NoError(t, err)
	assert.Equal(t, Unsat, res)
}

func TestSolver_StatsAndObserver(t *testing.T) {
	f := newFixture(t)
	var observed []Result
	s := NewSolver(WithObserver(func(r Result, _ time.Duration) { observed = append(observed, r) }))

	mustCheck(t, s)
	require.NoError(t, s.Add(f.v("A")))
	require.NoError(t, s.Add(logic.Not(f.v("A"))))
	mustCheck(t, s)

	assert.Equal(t, Stats{Checks: 2, Sat: 1, Unsat: 1}, s.Stats())
	assert.Equal(t, []Result{Sat, Unsat}, observed)
}

func TestSolver_CheckTimeoutOnEasyProblem(t *testing.T) {
	f := newFixture(t)
	s := NewSolver(WithCheckTimeout(5 * time.Second))
	require.NoError(t, s.Add(f.parse(t, "A and (X = 2)")))
	assert.Equal(t, Sat, mustCheck(t, s))
}

func TestRequire(t *testing.T) {
	ok, err := Require(Sat, nil, "kb")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Require(Unsat, nil, "kb")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Require(Unknown, nil, "kb")
	assert.True(t, errors.Is(err, types.ErrOracleUnknown))
	assert.Contains(t, err.Error(), "kb")

	boom := errors.New("boom")
	_, err = Require(Sat, boom, "kb")
	assert.ErrorIs(t, err, boom)
}
