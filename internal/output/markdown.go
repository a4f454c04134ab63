// internal/output/markdown.go
package output

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter outputs RunResult as human-readable Markdown.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format renders the RunResult as Markdown.
func (f *MarkdownFormatter) Format(result *RunResult) ([]byte, error) {
	var b strings.Builder

	if result.Error != "" {
		b.WriteString("## Error\n\n")
		b.WriteString(result.Error)
		b.WriteString("\n")
		return []byte(b.String()), nil
	}

	r := result.Report
	fmt.Fprintf(&b, "## Sync to %s\n\n", result.Target)
	fmt.Fprintf(&b, "Documents are at <%s>.\n\n", r.ViewURL())

	if len(r.Documents) > 0 {
		b.WriteString("| Document | Title | ID | Action | Assets |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, d := range r.Documents {
			fmt.Fprintf(&b, "| `%s` | %s | %d | %s | %d |\n", d.Path, d.Title, d.RemoteID, d.Action, d.Assets)
		}
	}

	docLabel := "documents"
	if r.Uploaded == 1 {
		docLabel = "document"
	}
	fmt.Fprintf(&b, "\n---\n*Uploaded %d %s (%d unchanged, %d assets, %d items) in %s*\n",
		r.Uploaded, docLabel, r.Unchanged, r.Assets, r.Items, r.Duration.Round(100*time.Millisecond))

	return []byte(b.String()), nil
}
