// Package frontmatter locates the delimited metadata header at the start of a
// source file and decodes it as YAML. For Markdown the format is:
//
//	---
//	title: Home
//	---
//	body
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiters are the opening and closing marker lines of a header block.
type Delimiters struct {
	Start string
	End   string
}

var (
	// YAML delimits headers of Markdown documents and task definitions.
	YAML = Delimiters{Start: "---", End: "---"}
	// Comment delimits headers of style themes, keeping them valid CSS.
	Comment = Delimiters{Start: "/*", End: "*/"}
)

// Span locates a header inside a file. The header text is
// raw[HeaderStart:HeaderEnd]; the body starts at BodyStart.
type Span struct {
	HeaderStart int
	HeaderEnd   int
	BodyStart   int
}

// Find scans raw line by line. Leading blank lines are skipped and the first
// non-blank line must start with d.Start. ok is false when raw has no header
// or the header is never closed.
func Find(raw string, d Delimiters) (span Span, ok bool) {
	opened := false
	offset := 0
	for offset < len(raw) {
		lineEnd := len(raw)
		if i := strings.IndexByte(raw[offset:], '\n'); i >= 0 {
			lineEnd = offset + i + 1
		}
		line := strings.TrimRight(raw[offset:lineEnd], " \t\r\n")

		switch {
		case !opened && line == "":
		case !opened && strings.HasPrefix(line, d.Start):
			opened = true
			span.HeaderStart = lineEnd
		case !opened:
			return Span{}, false
		case strings.HasPrefix(line, d.End):
			span.HeaderEnd = offset
			span.BodyStart = lineEnd
			return span, true
		}
		offset = lineEnd
	}
	return Span{}, false
}

// Split returns the header text and the body of raw. When raw has no header
// the whole input is the body.
func Split(raw string, d Delimiters) (header, body string) {
	span, ok := Find(raw, d)
	if !ok {
		return "", raw
	}
	return raw[span.HeaderStart:span.HeaderEnd], raw[span.BodyStart:]
}

// Settings holds the header fields timsync acts on. Any other keys are
// still available to templates through the raw map returned by Decode.
type Settings struct {
	Title            string         `yaml:"title"`
	Path             string         `yaml:"tim_path"`
	UID              string         `yaml:"uid"`
	Plugin           string         `yaml:"plugin"`
	PluginAttributes map[string]any `yaml:"plugin_attributes"`
	Class            []string       `yaml:"class"`
}

// Decode parses a header block into Settings and the full key/value map.
// An empty header decodes to zero Settings and an empty map.
func Decode(header string) (Settings, map[string]any, error) {
	var settings Settings
	raw := map[string]any{}
	if strings.TrimSpace(header) == "" {
		return settings, raw, nil
	}
	if err := yaml.Unmarshal([]byte(header), &raw); err != nil {
		return settings, nil, fmt.Errorf("parse front matter YAML: %w", err)
	}
	if err := yaml.Unmarshal([]byte(header), &settings); err != nil {
		return settings, nil, fmt.Errorf("parse front matter YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return settings, raw, nil
}

// Error reports a header of a specific file that could not be decoded.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("front matter of %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
