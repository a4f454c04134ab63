package project

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// IgnoreFileName is the project ignore file.
const IgnoreFileName = ".timsyncignore"

// DefaultIgnore is the ignore file written by Init.
const DefaultIgnore = `
# This file is used to ignore files and directories in the project.
# You can use glob patterns to match files and directories.
# These patterns will apply in addition to the default TIMSync ignore
# rules (dirs/files starting with _ or .).

README.md
`

// Ignore holds glob patterns relative to the project root.
type Ignore struct {
	patterns []glob.Glob
}

// ParseIgnore compiles one pattern per line. Blank lines and lines starting
// with # are skipped.
func ParseIgnore(content string) (*Ignore, error) {
	ig := &Ignore{}
	sc := bufio.NewScanner(strings.NewReader(content))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := glob.Compile(strings.TrimPrefix(line, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid pattern %q: %w", IgnoreFileName, n, line, err)
		}
		ig.patterns = append(ig.patterns, g)
	}
	return ig, sc.Err()
}

// LoadIgnore reads the ignore file of the project at root. A missing file
// ignores nothing.
func LoadIgnore(fsys afero.Fs, root string) (*Ignore, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(root, IgnoreFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return &Ignore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFileName, err)
	}
	return ParseIgnore(string(data))
}

// Match reports whether the slash separated path relative to the project
// root is ignored.
func (ig *Ignore) Match(rel string) bool {
	for _, g := range ig.patterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (ig *Ignore) Len() int { return len(ig.patterns) }
