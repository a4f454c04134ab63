package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	tickStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC8800", Dark: "#FFAA00"}).Bold(true)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
)

// Tick prefixes msg with a success mark.
func Tick(msg string) string { return tickStyle.Render("✓") + " " + msg }

// Warn prefixes msg with a warning mark.
func Warn(msg string) string { return warnStyle.Render("!") + " " + msg }

// Info renders a dimmed hint line.
func Info(msg string) string { return infoStyle.Render(msg) }

// Attended reports whether both stdin and stdout are terminals, i.e. a user
// can answer prompts.
func Attended() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Width returns the terminal width of stdout, or def when unknown.
func Width(def int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return def
	}
	return w
}
