package common

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	lineStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#BCBCBC", Dark: "#646464"})
	valueStyle = lipgloss.NewStyle().Foreground(indigo)
)

// VerticalLine renders the bar in front of key-value rows.
func VerticalLine() string {
	return lineStyle.Render("│")
}

// KeyValueView renders key-value pairs
func KeyValueView(stuff ...string) string {
	if len(stuff) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(stuff); i += 2 {
		b.WriteString(VerticalLine())
		b.WriteString(" ")
		b.WriteString(stuff[i])
		b.WriteString(": ")
		b.WriteString(valueStyle.Render(stuff[i+1]))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
