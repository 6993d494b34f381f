package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demski/internal/store"
	"demski/internal/types"
)

const doors = `A 0.3,B,C,unif X 1 3
A implies B,(X = 2) implies C
C
B
`

type harness struct {
	dir    string
	db     string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"DEMSKI_DB", "DEMSKI_WORKERS", "DEMSKI_SEED", "DEMSKI_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return &harness{
		dir:    dir,
		db:     filepath.Join(dir, "runs.db"),
		config: filepath.Join(dir, "absent.yaml"),
	}
}

func (h *harness) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", h.config, "--db", h.db}, args...))
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) runs(t *testing.T) []store.Run {
	t.Helper()
	st, err := store.Open(h.db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	return runs
}

func TestRun_StoresPriorAndPosterior(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "doors.csv", doors)

	out, _, err := h.execute(t, "run", path, "--samples", "40", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "prior")
	assert.Contains(t, out, "posterior")

	runs := h.runs(t)
	require.Len(t, runs, 2)
	child, parent := runs[0], runs[1]
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, 40, parent.Samples)
	assert.Equal(t, []string{"B"}, child.Added)
	assert.Equal(t, []string{"A implies B", "(X = 2) implies C", "B"}, child.Background)
	assert.LessOrEqual(t, child.Samples, parent.Samples)
	assert.Contains(t, out, child.ID)
}

func TestRun_NoSave(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "doors.csv", doors)

	_, _, err := h.execute(t, "run", path, "--samples", "10", "--no-save")
	require.NoError(t, err)
	_, err = os.Stat(h.db)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MetricsOut(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "doors.csv", doors)
	metricsPath := filepath.Join(h.dir, "metrics.prom")

	_, _, err := h.execute(t, "run", path, "--samples", "10", "--workers", "2", "--no-save", "--metrics-out", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "demski_sampler_iterations_total")
	assert.Contains(t, string(data), "demski_oracle_checks_total")
}

func TestRun_NoBudgetIsConfigError(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "doors.csv", doors)

	_, _, err := h.execute(t, "run", path, "--seconds", "0")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestRun_ParseErrorExitCode(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "bad.csv", "A,B\nA or D\nA\n")

	_, _, err := h.execute(t, "run", path, "--samples", "5")
	require.Error(t, err)
	assert.True(t, types.IsParseError(err))
	assert.Equal(t, 2, exitCode(err))
}

func TestUpdate_ChainsOnStoredRun(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "prior.csv", "A,B,unif X 1 3\nA implies B\nA\n")

	_, _, err := h.execute(t, "run", path, "--samples", "30", "--seed", "5")
	require.NoError(t, err)
	runs := h.runs(t)
	require.Len(t, runs, 1)
	prior := runs[0]

	out, _, err := h.execute(t, "update", prior.ID[:8], "B", "X > 1")
	require.NoError(t, err)
	assert.Contains(t, out, "before: ")
	assert.Contains(t, out, "after:  ")

	runs = h.runs(t)
	require.Len(t, runs, 2)
	child := runs[0]
	assert.Equal(t, prior.ID, child.ParentID)
	assert.Equal(t, []string{"B", "X > 1"}, child.Added)
	assert.LessOrEqual(t, child.Samples, prior.Samples)

	_, _, err = h.execute(t, "update", child.ID, "not B")
	require.Error(t, err)
	assert.True(t, types.IsConfigError(err), "%v", err)
}

func TestUpdate_UnknownRun(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.execute(t, "update", "nope", "A")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	path := h.file(t, "doors.csv", doors)
	_, _, err = h.execute(t, "run", path, "--samples", "5")
	require.NoError(t, err)

	out, _, err = h.execute(t, "history", "--limit", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "doors.csv")
}

func TestBatch(t *testing.T) {
	h := newHarness(t)
	good := h.file(t, "good.csv", doors)
	plain := h.file(t, "plain.csv", "A,B\nA or B\nA\n")
	bad := h.file(t, "bad.csv", "A,B\nA or B\n")
	results := filepath.Join(h.dir, "results.csv")

	_, stderr, err := h.execute(t, "batch", good, bad, plain, "--samples", "20", "--out", results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")
	assert.Contains(t, stderr, "bad.csv")

	f, err := os.Open(results)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, good, rows[1][0])
	assert.Equal(t, "20", rows[1][1])
	assert.NotEmpty(t, rows[1][3])
	assert.Equal(t, plain, rows[2][0])
	assert.Empty(t, rows[2][3])
	assert.Empty(t, rows[2][4])
}

func TestClosure(t *testing.T) {
	h := newHarness(t)
	path := h.file(t, "chain.csv", "A,B,C,D\nA implies B,C or D\nA\n")

	out, _, err := h.execute(t, "closure", path)
	require.NoError(t, err)
	assert.Contains(t, out, "reachable:  A, B")
	assert.Contains(t, out, "irrelevant: C, D")
	assert.Contains(t, out, "facts:      target=1 occurs=4 reachable=2")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(types.NewConfigError("bad")))
	assert.Equal(t, 2, exitCode(&types.ParseError{Token: "x", Reason: "unknown"}))
	assert.Equal(t, 1, exitCode(errors.New("io")))
}
