package monitor

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorBlue   = lipgloss.Color("39")
	colorGray   = lipgloss.Color("245")
	colorWhite  = lipgloss.Color("255")
	colorBorder = lipgloss.Color("240")
)

// Styles defines the visual styles for the dashboard
type Styles struct {
	Box lipgloss.Style

	Title     lipgloss.Style
	Header    lipgloss.Style
	Normal    lipgloss.Style
	Muted     lipgloss.Style
	Faint     lipgloss.Style
	Selected  lipgloss.Style
	TabActive lipgloss.Style
	Tab       lipgloss.Style

	Passing lipgloss.Style
	Failing lipgloss.Style
	Running lipgloss.Style
	New     lipgloss.Style
	Error   lipgloss.Style

	IndicatorPass    string
	IndicatorFail    string
	IndicatorRunning string
	CheckOn          string
	CheckOff         string
}

// DefaultStyles returns the default style configuration
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGray),

		Normal: lipgloss.NewStyle().
			Foreground(colorWhite),

		Muted: lipgloss.NewStyle().
			Foreground(colorGray),

		Faint: lipgloss.NewStyle().
			Faint(true),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("236")).
			Foreground(colorWhite),

		TabActive: lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(colorBlue),

		Tab: lipgloss.NewStyle().
			Foreground(colorGray),

		Passing: lipgloss.NewStyle().
			Foreground(colorGreen),

		Failing: lipgloss.NewStyle().
			Foreground(colorRed),

		Running: lipgloss.NewStyle().
			Foreground(colorYellow),

		New: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed),

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed),

		IndicatorPass:    "✓",
		IndicatorFail:    "✗",
		IndicatorRunning: "●",
		CheckOn:          "[x]",
		CheckOff:         "[ ]",
	}
}

// Check renders a selection checkbox.
func (s Styles) Check(on bool) string {
	if on {
		return s.CheckOn
	}
	return s.CheckOff
}

// StatusLine renders the status line in the colour matching the run state.
func (s Styles) StatusLine(line string, running, isErr, failing bool) string {
	switch {
	case running:
		return s.Running.Render(s.IndicatorRunning + " " + line)
	case isErr:
		return s.Error.Render(s.IndicatorFail + " " + line)
	case failing:
		return s.Failing.Render(s.IndicatorFail + " " + line)
	default:
		return s.Passing.Render(s.IndicatorPass + " " + line)
	}
}
