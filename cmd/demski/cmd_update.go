package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"demski/internal/engine"
	"demski/internal/input"
	"demski/internal/report"
	"demski/internal/store"
)

var updateCmd = &cobra.Command{
	Use:   "update <run-id> <sentence>...",
	Short: "Condition a stored run on additional knowledge",
	Long: `Loads the population of a stored run and keeps the samples consistent
with its knowledge plus the given sentences, without sampling again. The
result is stored as a new run whose parent is the given one, so updates
can be chained. A unique prefix of the run id is enough.

Example:
  demski update 3f2a91c0 "B" "not (X = 2)"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	parent, err := st.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	added := args[1:]
	p, err := input.New(parent.Declarations, parent.Background, parent.Target, added, true)
	if err != nil {
		return err
	}
	p.Source = parent.Source

	pop, err := st.LoadPopulation(ctx, parent, p.Registry)
	if err != nil {
		return err
	}
	post, err := engine.Condition(ctx, p, pop, sessionOptions(cfg, nil))
	if err != nil {
		return err
	}

	child := &store.Run{
		ParentID:     parent.ID,
		Source:       parent.Source,
		Declarations: parent.Declarations,
		Background:   append(append([]string{}, parent.Background...), added...),
		Target:       parent.Target,
		Added:        added,
		Seed:         parent.Seed,
	}
	id, err := st.SaveRun(ctx, child, post)
	if err != nil {
		return err
	}
	logger.Info("update stored", zap.String("parent", parent.ID), zap.String("run_id", id), zap.Int("kept", post.Len()))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "before: %s\n", report.Ratio(parent.Hits, parent.Samples))
	fmt.Fprintf(out, "after:  %s\n", report.Ratio(post.Hits, post.Len()))
	fmt.Fprintf(out, "run:    %s\n", id)
	return nil
}
