// Package mdlinks finds link and image destinations in Markdown source and
// rewrites them in place.
package mdlinks

import (
	"bytes"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Span is the raw destination of an inline link or image.
// Source[Start:End] is the destination as written; Dest is its decoded form.
type Span struct {
	Start int
	End   int
	Dest  string
	Image bool
}

var parser = goldmark.New().Parser()

// Scan returns the destination spans of inline links and images, sorted by
// start offset. Reference style links and autolinks are not reported.
func Scan(source []byte) []Span {
	doc := parser.Parse(text.NewReader(source))

	type frame struct {
		first  int
		cursor int
	}
	var (
		spans []Span
		open  []frame
		// cursor is the furthest source offset known to precede the node
		// being visited.
		cursor int
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		var dest []byte
		image := false
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				cursor = max(cursor, node.Segment.Stop)
			}
			return ast.WalkContinue, nil
		case *ast.Link:
			dest = node.Destination
		case *ast.Image:
			dest = node.Destination
			image = true
		default:
			return ast.WalkContinue, nil
		}
		if entering {
			open = append(open, frame{first: len(spans), cursor: cursor})
			return ast.WalkContinue, nil
		}

		f := open[len(open)-1]
		open = open[:len(open)-1]

		// Links without text ("![](a.png)") are found from the text before them.
		anchor := lastTextStop(n)
		if anchor < 0 {
			anchor = f.cursor
		}
		for _, nested := range spans[f.first:] {
			anchor = max(anchor, nested.End)
		}
		if len(dest) == 0 {
			return ast.WalkContinue, nil
		}
		if start, end, ok := locate(source, anchor); ok {
			spans = append(spans, Span{Start: start, End: end, Dest: string(dest), Image: image})
			cursor = max(cursor, end)
		}
		return ast.WalkContinue, nil
	})

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// Rewrite replaces span destinations left to right. replace returns the new
// destination, or false to keep the original. Every replacement shifts the
// offsets of the spans after it, so a running correction is applied.
func Rewrite(source string, spans []Span, replace func(Span) (string, bool)) string {
	sorted := append([]Span(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := source
	shift := 0
	for _, s := range sorted {
		repl, ok := replace(s)
		if !ok {
			continue
		}
		start, end := s.Start+shift, s.End+shift
		out = out[:start] + repl + out[end:]
		shift += len(repl) - (s.End - s.Start)
	}
	return out
}

// lastTextStop returns the end offset of the last text segment below n, or
// -1 when n has no text.
func lastTextStop(n ast.Node) int {
	stop := -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			stop = max(stop, t.Segment.Stop)
		}
		stop = max(stop, lastTextStop(c))
	}
	return stop
}

// locate finds the destination following the closing bracket after anchor.
func locate(source []byte, anchor int) (start, end int, ok bool) {
	closeIdx := bytes.IndexByte(source[anchor:], ']')
	if closeIdx < 0 {
		return 0, 0, false
	}
	i := anchor + closeIdx + 1
	if i >= len(source) || source[i] != '(' {
		return 0, 0, false
	}
	i++
	for i < len(source) && (source[i] == ' ' || source[i] == '\t' || source[i] == '\n') {
		i++
	}
	if i < len(source) && source[i] == '<' {
		start = i + 1
		closing := bytes.IndexByte(source[start:], '>')
		if closing < 0 {
			return 0, 0, false
		}
		return start, start + closing, true
	}

	start = i
	depth := 0
	for i < len(source) {
		switch c := source[i]; {
		case c == '\\' && i+1 < len(source):
			i += 2
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return start, i, i > start
			}
			depth--
		case c == ' ' || c == '\t' || c == '\n':
			return start, i, i > start
		}
		i++
	}
	return 0, 0, false
}
