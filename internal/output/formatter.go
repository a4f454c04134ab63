// internal/output/formatter.go
package output

import (
	"fmt"
	"time"

	"github.com/JYU-DI/timsync/internal/pipeline"
)

// RunResult is the outcome of one sync command.
type RunResult struct {
	Target string
	// Report is nil when the run failed before finishing.
	Report *pipeline.Report
	Error  string
}

// Duration returns the run duration, or zero for failed runs.
func (r *RunResult) Duration() time.Duration {
	if r.Report == nil {
		return 0
	}
	return r.Report.Duration
}

// Formatter formats a RunResult into output bytes.
type Formatter interface {
	Format(result *RunResult) ([]byte, error)
}

// New returns the formatter for a --output value.
func New(format string) (Formatter, error) {
	switch format {
	case "", "text":
		return NewTextFormatter(), nil
	case "markdown", "md":
		return NewMarkdownFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, markdown or json)", format)
	}
}
