package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demski/internal/types"
)

const doorsProblem = `# three doors
A 0.3,B,C,unif X 1 3
A implies B,,(X = 2) implies C,
C
B,not A
`

func TestRead(t *testing.T) {
	p, err := Read(strings.NewReader(doorsProblem))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "X"}, p.Registry.Names())
	assert.Equal(t, []string{"A 0.3", "B", "C", "unif X 1 3"}, p.Declarations)
	assert.Equal(t, []string{"A implies B", "(X = 2) implies C"}, p.BackgroundText)
	require.Len(t, p.Background, 2)
	assert.Equal(t, "(X = 2) implies C", p.Background[1].String())
	assert.Equal(t, "C", p.TargetText)
	assert.True(t, p.HasUpdate)
	assert.Equal(t, []string{"B", "not A"}, p.UpdateText)
	assert.Len(t, p.Knowledge(), 4)
}

func TestRead_NoUpdateRow(t *testing.T) {
	p, err := Read(strings.NewReader("A,B\nA or B\nA\n"))
	require.NoError(t, err)
	assert.False(t, p.HasUpdate)
	assert.Empty(t, p.Update)
	assert.Len(t, p.Knowledge(), 1)
}

func TestRead_EmptyBackground(t *testing.T) {
	p, err := Read(strings.NewReader("A,B\n,\nA and B\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Background)
	assert.Equal(t, "A and B", p.Target.String())
}

func TestRead_BlankBackgroundLine(t *testing.T) {
	p, err := Read(strings.NewReader("A,B\n\nA\nB\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Background)
	assert.Equal(t, "A", p.TargetText)
	assert.True(t, p.HasUpdate)
	assert.Equal(t, []string{"B"}, p.UpdateText)
}

func TestRead_BlankLinesKeepRowPositions(t *testing.T) {
	p, err := Read(strings.NewReader("# header\nA,B\n   \n# note\nA or B\n"))
	require.NoError(t, err)
	assert.Empty(t, p.Background)
	assert.Equal(t, "A or B", p.TargetText)
	assert.False(t, p.HasUpdate)

	_, err = Read(strings.NewReader("A,B\n\n\nA\n"))
	require.Error(t, err, "a blank target row is still a missing target")
	assert.True(t, types.IsConfigError(err))
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		parse   bool
	}{
		{"too few rows", "A,B\nA or B\n", false},
		{"two targets", "A,B\nA or B\nA,B\n", false},
		{"no target", "A,B\nA or B\n,\n", false},
		{"reserved variable", "A,xor\nA\nA\n", false},
		{"bad quoting", "A,\"B\nA\n", false},
		{"unknown variable", "A,B\nA or D\nA\n", true},
		{"bad target", "A,B\nA or B\nA and\n", true},
		{"bad update", "A,B\nA or B\nA\nA implies\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.True(t, types.IsFatal(err))
			assert.Equal(t, tt.parse, types.IsParseError(err), "%v", err)
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doors.csv")
	require.NoError(t, os.WriteFile(path, []byte(doorsProblem), 0644))

	p, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Source)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
