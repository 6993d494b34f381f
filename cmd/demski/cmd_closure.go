package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"demski/internal/closure"
	"demski/internal/input"
	"demski/internal/report"
)

var closureCmd = &cobra.Command{
	Use:   "closure <problem.csv>",
	Short: "Show which declared variables can affect the target",
	Long: `Computes the transitive closure of the target's variables through the
background knowledge: a sentence sharing a variable with the closure adds
all of its variables. Declared variables outside the closure are sampled
but cannot change the estimate.

The closure is computed twice, by fixed-point iteration and by a Datalog
program, and the two must agree.`,
	Args: cobra.ExactArgs(1),
	RunE: runClosure,
}

func runClosure(cmd *cobra.Command, args []string) error {
	p, err := input.ReadFile(args[0])
	if err != nil {
		return err
	}
	r := closure.Analyze(p.Registry.Names(), p.Background, p.Target)

	prog, err := closure.NewProgram()
	if err != nil {
		return err
	}
	derived, err := prog.Reachable(p.Background, p.Target)
	if err != nil {
		return fmt.Errorf("datalog closure failed: %w", err)
	}
	if strings.Join(derived, ",") != strings.Join(r.Reachable, ",") {
		return fmt.Errorf("closure mismatch: fixed point %v, datalog %v", r.Reachable, derived)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target:     %s\n", p.TargetText)
	fmt.Fprintf(out, "reachable:  %s\n", strings.Join(r.Reachable, ", "))
	irrelevant := "-"
	if r.Wasted() {
		irrelevant = strings.Join(r.Irrelevant, ", ")
	}
	fmt.Fprintf(out, "irrelevant: %s\n", irrelevant)
	fmt.Fprintf(out, "passes:     %d\n", r.Passes)
	counts := prog.FactCounts()
	fmt.Fprintf(out, "facts:      target=%d occurs=%d reachable=%d\n", counts["target"], counts["occurs"], counts["reachable"])
	fmt.Fprintln(out, report.ClosureLine(r))
	return nil
}
