// Package report renders session results for people (a styled terminal
// summary) and for scripts (CSV batch rows).
package report

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	lightForeground = lipgloss.Color("#101F38")
	lightAccent     = lipgloss.Color("#8BC34A")
	lightMuted      = lipgloss.Color("#6b7280")
	lightBorder     = lipgloss.Color("#dce0e5")

	darkForeground = lipgloss.Color("#f2f2f2")
	darkAccent     = lipgloss.Color("#8BC34A")
	darkMuted      = lipgloss.Color("#9ca3af")
	darkBorder     = lipgloss.Color("#2d3a4f")

	warning = lipgloss.Color("#FFC107")
)

// Theme is a color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{Foreground: lightForeground, Accent: lightAccent, Muted: lightMuted, Border: lightBorder}
}

func DarkTheme() Theme {
	return Theme{Foreground: darkForeground, Accent: darkAccent, Muted: darkMuted, Border: darkBorder, IsDark: true}
}

// DetectTheme picks the dark theme when COLORFGBG reports a dark background
// or DEMSKI_DARK_MODE=1, and the light theme otherwise.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && (bg <= 6 || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("DEMSKI_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components of a summary.
type Styles struct {
	Box      lipgloss.Style
	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Estimate lipgloss.Style
	Warning  lipgloss.Style
}

// NewStyles builds the summary styles for t.
func NewStyles(t Theme) Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Foreground),
		Label:    lipgloss.NewStyle().Foreground(t.Muted),
		Value:    lipgloss.NewStyle().Foreground(t.Foreground),
		Estimate: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Warning:  lipgloss.NewStyle().Foreground(warning),
	}
}
