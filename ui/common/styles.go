package common

import (
	"github.com/charmbracelet/lipgloss"
)

// Color definitions.
var (
	indigo       = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	subtleIndigo = lipgloss.AdaptiveColor{Light: "#7D79F6", Dark: "#514DC1"}
	cream        = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	fuschia      = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	green        = lipgloss.Color("#04B575")
	red          = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
)

// Styles describes style definitions for various portions of the TUI.
type Styles struct {
	Wrap,
	Paragraph,
	Title,
	Keyword,
	Code,
	Subtle,
	Error,
	Note,
	Label,
	LabelDim,
	Link,
	Button,
	FocusedButton,
	Checkmark,
	Logo,
	App lipgloss.Style
}

// DefaultStyles returns default styles for the TUI.
func DefaultStyles() Styles {
	s := Styles{}

	s.Wrap = lipgloss.NewStyle().Width(58)
	s.Keyword = lipgloss.NewStyle().Foreground(green)
	s.Paragraph = s.Wrap.Copy().Margin(1, 0, 0, 2)
	s.Title = lipgloss.NewStyle().Bold(true).Foreground(fuschia)
	s.Code = lipgloss.NewStyle().
		Foreground(red).
		Background(lipgloss.AdaptiveColor{Light: "#EBE5EC", Dark: "#2B2A2A"}).
		Padding(0, 1)
	s.Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	s.Error = lipgloss.NewStyle().Foreground(red)
	s.Note = lipgloss.NewStyle().Foreground(green)
	s.Label = lipgloss.NewStyle().Foreground(fuschia)
	s.LabelDim = lipgloss.NewStyle().Foreground(indigo)
	s.Link = lipgloss.NewStyle().Foreground(subtleIndigo).Underline(true)
	s.Button = lipgloss.NewStyle().
		Foreground(cream).
		Background(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#4F4F4F"}).
		Padding(0, 2)
	s.FocusedButton = s.Button.Copy().Background(indigo)
	s.Checkmark = lipgloss.NewStyle().
		SetString("✔").
		Foreground(green)
	s.Logo = lipgloss.NewStyle().
		Foreground(cream).
		Background(lipgloss.Color("#5A56E0")).
		Padding(0, 1).
		SetString("WebAuth")
	s.App = lipgloss.NewStyle().Margin(1, 0, 1, 2)

	return s
}
