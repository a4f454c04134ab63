// internal/output/json.go
package output

import (
	"encoding/json"

	"github.com/JYU-DI/timsync/internal/pipeline"
)

// JSONFormatter outputs RunResult as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonResult struct {
	Target string `json:"target"`
	*pipeline.Report
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Format marshals the RunResult as indented JSON. Report fields are
// flattened into the top level object.
func (f *JSONFormatter) Format(result *RunResult) ([]byte, error) {
	return json.MarshalIndent(jsonResult{
		Target:     result.Target,
		Report:     result.Report,
		DurationMs: result.Duration().Milliseconds(),
		Error:      result.Error,
	}, "", "  ")
}
