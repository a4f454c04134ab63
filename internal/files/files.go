// Package files classifies project source files and gives lazy, cached
// access to their contents and front matter.
package files

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/frontmatter"
)

// Kind is the processing category of a source file.
type Kind int

const (
	KindIgnored Kind = iota
	KindMarkdown
	KindTask
	KindStyleTheme
)

func (k Kind) String() string {
	switch k {
	case KindMarkdown:
		return "markdown"
	case KindTask:
		return "task"
	case KindStyleTheme:
		return "style-theme"
	default:
		return "ignored"
	}
}

// Classify determines the kind of a file from its name.
func Classify(path string) Kind {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".task.yml"), strings.HasSuffix(name, ".task.yaml"):
		return KindTask
	case strings.HasSuffix(name, ".md"):
		return KindMarkdown
	case strings.HasSuffix(name, ".scss"), strings.HasSuffix(name, ".css"):
		return KindStyleTheme
	default:
		return KindIgnored
	}
}

// IsHidden reports whether a file or directory name is always excluded from
// a project: anything starting with "." or "_".
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Delimiters returns the front matter delimiters used by files of kind k.
func (k Kind) Delimiters() frontmatter.Delimiters {
	if k == KindStyleTheme {
		return frontmatter.Comment
	}
	return frontmatter.YAML
}

// File is a project source file. Contents and the header position are read
// on first use and never change afterwards.
type File struct {
	fs   afero.Fs
	path string
	kind Kind

	once     sync.Once
	contents string
	span     frontmatter.Span
	hasFront bool
	err      error
}

// New returns a File for the absolute path on fs. The kind is derived from
// the file name.
func New(fs afero.Fs, path string) *File {
	return &File{fs: fs, path: path, kind: Classify(path)}
}

// Path returns the absolute path of the file.
func (f *File) Path() string { return f.path }

// Kind returns the classification of the file.
func (f *File) Kind() Kind { return f.kind }

func (f *File) load() {
	f.once.Do(func() {
		data, err := afero.ReadFile(f.fs, f.path)
		if err != nil {
			f.err = fmt.Errorf("read %s: %w", f.path, err)
			return
		}
		f.contents = string(data)
		f.span, f.hasFront = frontmatter.Find(f.contents, f.kind.Delimiters())
	})
}

// Contents returns the full file contents.
func (f *File) Contents() (string, error) {
	f.load()
	return f.contents, f.err
}

// FrontMatter returns the header text without delimiters, or "" when the
// file has none.
func (f *File) FrontMatter() (string, error) {
	f.load()
	if f.err != nil || !f.hasFront {
		return "", f.err
	}
	return f.contents[f.span.HeaderStart:f.span.HeaderEnd], nil
}

// Body returns the contents following the front matter.
func (f *File) Body() (string, error) {
	f.load()
	if f.err != nil || !f.hasFront {
		return f.contents, f.err
	}
	return f.contents[f.span.BodyStart:], nil
}

// Settings decodes the front matter. The raw map holds every header key and
// is what templates see.
func (f *File) Settings() (frontmatter.Settings, map[string]any, error) {
	header, err := f.FrontMatter()
	if err != nil {
		return frontmatter.Settings{}, nil, err
	}
	settings, raw, err := frontmatter.Decode(header)
	if err != nil {
		return settings, nil, &frontmatter.Error{Path: f.path, Err: err}
	}
	return settings, raw, nil
}
