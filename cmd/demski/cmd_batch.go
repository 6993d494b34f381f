package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"demski/internal/engine"
	"demski/internal/input"
	"demski/internal/report"
)

var batchOut string

var batchCmd = &cobra.Command{
	Use:   "batch <problem.csv>...",
	Short: "Run several problem files and write one CSV row per file",
	Long: `Runs each problem file with the same sampling settings and writes
the columns file, samples, probability, updated_samples and
updated_probability. Probabilities are rounded to four places; the
updated columns are empty for files without an update row.

A file that fails is reported on stderr and skipped; the command then
exits with an error after the remaining files ran.

Example:
  demski batch examples/*.csv --seconds 10 --out results.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	addSamplingFlags(batchCmd)
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Output CSV file (default stdout)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := applySamplingFlags(cmd, cfg); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var out io.Writer = cmd.OutOrStdout()
	if batchOut != "" {
		f, err := os.Create(batchOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", batchOut, err)
		}
		defer f.Close()
		out = f
	}

	bw := report.NewBatchWriter(out)
	opts := sessionOptions(cfg, nil)
	failed := 0
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		p, err := input.ReadFile(path)
		if err == nil {
			var res *engine.Result
			if res, err = engine.Run(ctx, p, opts); err == nil {
				err = bw.Write(path, res)
			}
		}
		if err != nil {
			failed++
			logger.Error("batch file failed", zap.String("file", path), zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
