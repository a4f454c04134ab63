package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	minPreviewWidth = 40
	maxPreviewWidth = 120
)

// PreviewRenderer shows TIM markup on a terminal. Paragraph markers are
// turned into something glamour can display before rendering.
type PreviewRenderer struct {
	renderer *glamour.TermRenderer
}

// NewPreviewRenderer creates a PreviewRenderer wrapping at width, clamped to
// a readable range. Without color the "notty" style is used so the output
// has no escape codes.
func NewPreviewRenderer(width int, color bool) (*PreviewRenderer, error) {
	width = min(max(width, minPreviewWidth), maxPreviewWidth)
	style := glamour.WithAutoStyle()
	if !color {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("creating preview renderer: %w", err)
	}
	return &PreviewRenderer{renderer: r}, nil
}

// Render styles TIM markup.
func (p *PreviewRenderer) Render(markup string) (string, error) {
	if markup == "" {
		return "", nil
	}
	md := ParagraphMarkers(markup)
	if p.renderer == nil {
		return md, nil
	}
	return p.renderer.Render(md)
}

// ParagraphMarkers rewrites TIM paragraph markers outside code fences. A bare
// "#-" becomes a paragraph break and "#- {attrs}" a quoted attribute line.
func ParagraphMarkers(markup string) string {
	lines := strings.Split(markup, "\n")
	out := make([]string, 0, len(lines))
	fenced := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			fenced = !fenced
			out = append(out, line)
			continue
		}
		switch {
		case fenced:
			out = append(out, line)
		case trimmed == "#-":
			out = append(out, "")
		case strings.HasPrefix(trimmed, "#- {"):
			out = append(out, "> `"+strings.TrimSpace(trimmed[2:])+"`", "")
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
