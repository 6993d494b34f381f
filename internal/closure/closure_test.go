package closure

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demski/internal/logic"
	"demski/internal/registry"
)

func parseAll(t *testing.T, reg *registry.Registry, sentences ...string) []*logic.Expr {
	t.Helper()
	out := make([]*logic.Expr, len(sentences))
	for i, s := range sentences {
		e, err := logic.ParseSentence(s, reg)
		require.NoError(t, err, s)
		out[i] = e
	}
	return out
}

func TestAnalyze(t *testing.T) {
	reg, err := registry.ParseDeclarations([]string{"A", "B", "C", "D", "E", "F", "unif X 1 3"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		kb         []string
		target     string
		reachable  []string
		irrelevant []string
	}{
		{
			name:       "no background",
			target:     "A",
			reachable:  []string{"A"},
			irrelevant: []string{"B", "C", "D", "E", "F", "X"},
		},
		{
			name:       "chain in reverse order needs several passes",
			kb:         []string{"E implies F", "D or E", "C = D", "A and C"},
			target:     "A",
			reachable:  []string{"A", "C", "D", "E", "F"},
			irrelevant: []string{"B", "X"},
		},
		{
			name:       "integer comparisons link variables",
			kb:         []string{"(X > 1) implies B", "C xor D"},
			target:     "X = 2",
			reachable:  []string{"B", "X"},
			irrelevant: []string{"A", "C", "D", "E", "F"},
		},
		{
			name:       "everything connected",
			kb:         []string{"A or B", "B or C", "C or D", "D or E", "E or F", "F = (X < 2)"},
			target:     "C",
			reachable:  []string{"A", "B", "C", "D", "E", "F", "X"},
			irrelevant: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := parseAll(t, reg, tt.kb...)
			target := parseAll(t, reg, tt.target)[0]

			r := Analyze(reg.Names(), kb, target)
			assert.Equal(t, tt.reachable, r.Reachable)
			assert.Equal(t, tt.irrelevant, r.Irrelevant)
			assert.Equal(t, len(tt.irrelevant) > 0, r.Wasted())

			viaDatalog, err := Datalog(kb, target)
			require.NoError(t, err)
			if diff := cmp.Diff(r.Reachable, viaDatalog); diff != "" {
				t.Errorf("Datalog disagrees with fixed point (-fixed +datalog):\n%s", diff)
			}
		})
	}
}

func TestReachable_PassCount(t *testing.T) {
	reg, err := registry.ParseDeclarations([]string{"A", "B", "C", "D"})
	require.NoError(t, err)

	// Listed so that each pass extends the set by one variable.
	kb := parseAll(t, reg, "C and D", "B and C", "A and B")
	target := parseAll(t, reg, "A")[0]

	set, passes := Reachable(kb, target)
	assert.Len(t, set, 4)
	// B, C and D are added on passes 1 to 3; pass 4 finds nothing new.
	assert.Equal(t, 4, passes)
}

func TestProgram_ReuseStartsClean(t *testing.T) {
	reg, err := registry.ParseDeclarations([]string{"A", "B", "C", "D"})
	require.NoError(t, err)
	prog, err := NewProgram()
	require.NoError(t, err)

	got, err := prog.Reachable(parseAll(t, reg, "A or B", "C or D"), parseAll(t, reg, "A")[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
	counts := prog.FactCounts()
	assert.Equal(t, 1, counts["target"])
	assert.Equal(t, 4, counts["occurs"])
	assert.Equal(t, 2, counts["reachable"])

	got, err = prog.Reachable(parseAll(t, reg, "C implies D"), parseAll(t, reg, "C")[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, got, "facts from the first problem must not leak")
	assert.Equal(t, 2, prog.FactCounts()["occurs"])
}

func TestDatalog_SlashNames(t *testing.T) {
	reg, err := registry.ParseDeclarations([]string{"/", "/x", "B"})
	require.NoError(t, err)
	kb := parseAll(t, reg, "/ implies /x", "B")
	target := parseAll(t, reg, "/")[0]

	got, err := Datalog(kb, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/x"}, got)
	set, _ := Reachable(kb, target)
	assert.Len(t, set, 2)
}
