package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/JYU-DI/timsync/internal/pipeline"
)

var (
	tickStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}).Bold(true)
	crossStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#EEEEEE"})
)

// TextFormatter prints a short terminal summary.
type TextFormatter struct{}

// NewTextFormatter creates a new TextFormatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format renders one status line plus one line per uploaded document.
func (f *TextFormatter) Format(result *RunResult) ([]byte, error) {
	var b strings.Builder
	if result.Error != "" {
		fmt.Fprintf(&b, "%s Sync to %s failed: %s\n", crossStyle.Render("✗"), result.Target, result.Error)
		return []byte(b.String()), nil
	}

	r := result.Report
	fmt.Fprintf(&b, "%s Syncing complete! View the documents at %s\n", tickStyle.Render("✓"), r.ViewURL())
	for _, d := range r.Documents {
		if d.Action != pipeline.ActionUploaded {
			continue
		}
		line := "  ↑ " + pathStyle.Render(d.Path)
		if d.Assets > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (+%d assets)", d.Assets))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d uploaded, %d unchanged, %d assets in %s",
		r.Uploaded, r.Unchanged, r.Assets, r.Duration.Round(10*time.Millisecond))))
	b.WriteString("\n")
	return []byte(b.String()), nil
}
