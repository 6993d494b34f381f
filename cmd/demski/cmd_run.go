package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"demski/internal/config"
	"demski/internal/engine"
	"demski/internal/input"
	"demski/internal/metrics"
	"demski/internal/report"
	"demski/internal/store"
	"demski/internal/types"
	"demski/internal/watch"
)

var (
	runSeconds    float64
	runSamples    int
	runWorkers    int
	runSeed       int64
	runCheckLimit time.Duration
	runNoSave     bool
	runWatch      bool
	runMetricsOut string
)

var runCmd = &cobra.Command{
	Use:   "run <problem.csv>",
	Short: "Sample the prior of a problem file and apply its update row",
	Long: `Reads a problem file (declarations, background, target, optional
additional knowledge), samples until the time budget or sample cap runs
out, and reports the prior and, when the file has a fourth row, the
updated estimate.

Example:
  demski run doors.csv --seconds 5
  demski run doors.csv --samples 1000 --workers 4 --seed 7`,
	Args: cobra.ExactArgs(1),
	RunE: runProblem,
}

func init() {
	addSamplingFlags(runCmd)
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not record the run in the history")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run whenever the problem file changes")
	runCmd.Flags().StringVar(&runMetricsOut, "metrics-out", "", "Write sampler and oracle metrics to this file")
}

func addSamplingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&runSeconds, "seconds", 0, "Sampling time budget in seconds (default from config)")
	cmd.Flags().IntVar(&runSamples, "samples", 0, "Stop after this many samples")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Parallel sampling workers")
	cmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().DurationVar(&runCheckLimit, "check-timeout", 0, "Give up on a single satisfiability check after this long")
}

// applySamplingFlags copies explicitly set flags over c and validates it.
func applySamplingFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("seconds") {
		c.Sampling.Duration = ""
		if runSeconds > 0 {
			c.Sampling.Duration = time.Duration(runSeconds * float64(time.Second)).String()
		}
	}
	if flags.Changed("samples") {
		c.Sampling.MaxSamples = runSamples
	}
	if flags.Changed("workers") {
		c.Sampling.Workers = runWorkers
	}
	if flags.Changed("seed") {
		c.Sampling.Seed = runSeed
	}
	if flags.Changed("check-timeout") {
		c.Oracle.CheckTimeout = runCheckLimit.String()
	}
	if err := c.Validate(); err != nil {
		return &types.ConfigError{Reason: "bad sampling settings", Err: err}
	}
	return nil
}

func sessionOptions(c *config.Config, rec *metrics.Recorder) engine.Options {
	return engine.Options{
		Duration:     c.SampleDuration(),
		MaxSamples:   c.Sampling.MaxSamples,
		Workers:      c.Sampling.Workers,
		Seed:         c.Sampling.Seed,
		CheckTimeout: c.CheckTimeout(),
		Metrics:      rec,
	}
}

func runProblem(cmd *cobra.Command, args []string) error {
	if err := applySamplingFlags(cmd, cfg); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var st *store.RunStore
	if !runNoSave {
		var err error
		if st, err = openStore(false); err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}
	}

	rec := metrics.New()
	out := cmd.OutOrStdout()
	if err := runOnce(ctx, out, args[0], rec, st); err != nil {
		return err
	}
	if runMetricsOut != "" {
		if err := writeMetrics(runMetricsOut, rec); err != nil {
			return err
		}
	}
	if !runWatch {
		return nil
	}

	w, err := watch.New(args[0], watch.DefaultDebounce, func(ctx context.Context, path string) {
		if err := runOnce(ctx, out, path, rec, st); err != nil {
			logger.Error("re-run failed", zap.String("file", path), zap.Error(err))
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}
	fmt.Fprintf(out, "watching %s, press Ctrl-C to stop\n", args[0])
	<-ctx.Done()
	w.Stop()
	return nil
}

// runOnce reads, samples, stores and prints one problem file.
func runOnce(ctx context.Context, out io.Writer, path string, rec *metrics.Recorder, st *store.RunStore) error {
	p, err := input.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, p, sessionOptions(cfg, rec))
	if err != nil {
		return err
	}

	var runID string
	if st != nil {
		if runID, err = saveResult(ctx, st, p, res); err != nil {
			return err
		}
	}
	logger.Info("run finished",
		zap.String("file", path),
		zap.Int("samples", res.InitialSamples),
		zap.Int("hits", res.InitialHits),
		zap.Bool("updated", res.Updated),
		zap.String("run_id", runID),
	)
	fmt.Fprintln(out, report.Summary(report.NewStyles(report.DetectTheme()), p, res, runID))
	return nil
}

// saveResult stores the prior population and, when an update ran, the
// posterior as its child. It returns the id of the last stored run.
func saveResult(ctx context.Context, st *store.RunStore, p *input.Problem, res *engine.Result) (string, error) {
	prior := &store.Run{
		Source:       p.Source,
		Declarations: p.Declarations,
		Background:   p.BackgroundText,
		Target:       p.TargetText,
		Seed:         res.Seed,
		Duration:     res.Duration,
	}
	id, err := st.SaveRun(ctx, prior, res.Population)
	if err != nil {
		return "", err
	}
	if !res.Updated {
		return id, nil
	}

	knowledge := append(append([]string{}, p.BackgroundText...), p.UpdateText...)
	post := &store.Run{
		ParentID:     id,
		Source:       p.Source,
		Declarations: p.Declarations,
		Background:   knowledge,
		Target:       p.TargetText,
		Added:        p.UpdateText,
		Seed:         res.Seed,
	}
	return st.SaveRun(ctx, post, res.Posterior)
}

func writeMetrics(path string, rec *metrics.Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := rec.WriteText(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return f.Close()
}
