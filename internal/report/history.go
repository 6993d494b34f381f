package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"demski/internal/store"
)

// History writes stored runs as an aligned table, newest first as given.
func History(out io.Writer, runs []store.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tTARGET\tSAMPLES\tHITS\tESTIMATE\tPARENT\tCREATED")
	for _, r := range runs {
		parent := "-"
		if r.IsUpdate() {
			parent = shortID(r.ParentID)
		}
		source := r.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			shortID(r.ID), source, r.Target, r.Samples, r.Hits,
			FormatProbability(r.Probability()), parent, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
