package logic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demski/internal/registry"
	"demski/internal/types"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.ParseDeclarations([]string{"A", "B", "C", "B'", "oRd", "unif X 1 6", "unif Y 0 3"})
	require.NoError(t, err)
	return reg
}

func TestTokenize(t *testing.T) {
	got := Tokenize("  (B' implies A )or( (not ( not ( not ( A ) ) ) ) and B' )")
	want := []string{"(", "B'", "implies", "A", ")", "or", "(", "(", "not", "(", "not", "(", "not", "(", "A", ")", ")", ")", ")", "and", "B'", ")"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSentence_Grouping(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		sentence string
		want     string
	}{
		{"A", "A"},
		{"A and B", "A and B"},
		{"A and B or C", "A and (B or C)"},
		{"A or B and C", "A or (B and C)"},
		{"(A and B) or C", "(A and B) or C"},
		{"((A and B)) or C", "(A and B) or C"},
		{"not A and B", "not (A and B)"},
		{"A and not B or C", "A and not (B or C)"},
		{"(not A) and B", "not A and B"},
		{"A implies B implies C", "A implies (B implies C)"},
		{"A = B", "A = B"},
		{"A == B xor C", "A = (B xor C)"},
		{"A iff B", "A = B"},
		{"(A or B) implies not oRd", "(A or B) implies not oRd"},
		{"A and (B or C) and A", "A and ((B or C) and A)"},
		{"X < 3", "X < 3"},
		{"X >= Y", "X >= Y"},
		{"(X = 4) and A", "(X = 4) and A"},
		{"X != Y", "X != Y"},
		{"X <> 2", "X != 2"},
		{"A And B Or C", "A and (B or C)"},
		{"NOT A", "not A"},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			e, err := ParseSentence(tt.sentence, reg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseSentence_RightGroupingEvaluation(t *testing.T) {
	reg := testRegistry(t)
	e, err := ParseSentence("A and B or C", reg)
	require.NoError(t, err)

	a := NewAssignment()
	a.Bools["A"] = false
	a.Bools["B"] = false
	a.Bools["C"] = true

	got, err := e.Holds(a)
	require.NoError(t, err)
	assert.False(t, got, "A and (B or C) is false when A is false")

	aVar, _ := reg.Lookup("A")
	bVar, _ := reg.Lookup("B")
	cVar, _ := reg.Lookup("C")
	left := Or(And(Var(aVar), Var(bVar)), Var(cVar))
	leftVal, err := left.Holds(a)
	require.NoError(t, err)
	assert.True(t, leftVal, "left grouping would have been true")
	assert.False(t, e.Equal(left))
	assert.True(t, e.Equal(And(Var(aVar), Or(Var(bVar), Var(cVar)))))
}

func TestParseSentence_Errors(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		sentence string
		token    string
	}{
		{"A and D", "D"},
		{"A foo B", "foo"},
		{"", ""},
		{"   ", ""},
		{"(A and B", ""},
		{"A and B)", ")"},
		{"and A", "and"},
		{"A and", "and"},
		{"A B", "B"},
		{"A not B", "not"},
		{"()", "("},
		{"not", "not"},
		{"A (B)", "("},
		{"X and A", "and"},
		{"A < B", "<"},
		{"X = A", "="},
		{"X = 4 and A", "and"},
		{"not X", "not"},
		{"X", ""},
		{"3", ""},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			_, err := ParseSentence(tt.sentence, reg)
			require.Error(t, err)
			var pe *types.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.token, pe.Token)
		})
	}
}

func TestParseTokens_NextIndex(t *testing.T) {
	reg := testRegistry(t)
	tokens := Tokenize("A and B ) or C")
	e, next, err := ParseTokens(tokens, 0, reg)
	require.NoError(t, err)
	assert.Equal(t, "A and B", e.String())
	assert.Equal(t, 4, next)

	e, next, err = ParseTokens(tokens, next+1, reg)
	require.NoError(t, err)
	assert.Equal(t, "C", e.String())
	assert.Equal(t, len(tokens), next)
}

func TestExprVars(t *testing.T) {
	reg := testRegistry(t)
	e, err := ParseSentence("(B' implies A) or ((not (not (not (A)))) and B')", reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B'"}, e.Vars())

	e, err = ParseSentence("(X < Y) and C", reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "X", "Y"}, e.Vars())
}
