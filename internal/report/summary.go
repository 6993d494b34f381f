package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"demski/internal/closure"
	"demski/internal/engine"
	"demski/internal/input"
)

// Summary renders a session result as a bordered box. runID may be empty.
func Summary(st Styles, p *input.Problem, res *engine.Result, runID string) string {
	var rows []string
	row := func(label, value string) {
		rows = append(rows, st.Label.Render(fmt.Sprintf("%-10s", label))+" "+st.Value.Render(value))
	}

	title := "demski"
	if p.Source != "" {
		title += " · " + p.Source
	}
	rows = append(rows, st.Title.Render(title), "")

	row("target", p.TargetText)
	row("variables", fmt.Sprintf("%d", p.Registry.Len()))
	row("samples", fmt.Sprintf("%d in %v (seed %d)", res.InitialSamples, res.Duration.Round(time.Millisecond), res.Seed))
	rows = append(rows, st.Label.Render(fmt.Sprintf("%-10s", "prior"))+" "+
		st.Estimate.Render(Ratio(res.InitialHits, res.InitialSamples)))

	if res.Updated {
		row("knowledge", strings.Join(p.UpdateText, "; "))
		rows = append(rows, st.Label.Render(fmt.Sprintf("%-10s", "posterior"))+" "+
			st.Estimate.Render(Ratio(res.UpdatedHits, res.UpdatedSamples)))
	}
	if res.Closure.Wasted() {
		rows = append(rows, "", st.Warning.Render(ClosureLine(res.Closure)))
	}
	if runID != "" {
		row("run", runID)
	}

	return st.Box.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Ratio renders "hits/samples = p" with p to four places, or "hits/0" when
// there are no samples.
func Ratio(hits, samples int) string {
	if samples == 0 {
		return fmt.Sprintf("%d/0", hits)
	}
	return fmt.Sprintf("%d/%d = %s", hits, samples, FormatProbability(float64(hits)/float64(samples)))
}

// ClosureLine describes a closure report in one line.
func ClosureLine(r closure.Report) string {
	if !r.Wasted() {
		return "every declared variable can affect the target"
	}
	return "cannot affect the target: " + strings.Join(r.Irrelevant, ", ")
}
