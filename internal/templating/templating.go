// Package templating renders project sources as handlebars templates with
// the TIM specific helpers. Every render returns the markup together with
// the local files the helpers asked to upload.
package templating

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/globalctx"
)

// Keys shared with the task processor.
const (
	TasksUID        = "_timsync_tasks"
	TasksRefMapKey  = "_timsync_tasks_ref_map"
	KeyPath         = "path"
	KeyLocalFile    = "local_file_path"
	maxIncludeDepth = 16
)

var (
	ErrMissingContext  = errors.New("missing template context")
	ErrNoTasks         = errors.New("no tasks registered")
	ErrUnknownTask     = errors.New("unknown task")
	ErrUnknownDocument = errors.New("unknown document")
)

// Error is a failed render of a source file.
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("render %s: %v", e.File, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// helperError carries a user facing message and the sentinel it belongs to.
type helperError struct {
	kind error
	msg  string
}

func (e *helperError) Error() string { return e.msg }

func (e *helperError) Unwrap() error { return e.kind }

// HelperSet selects which helpers a Renderer registers.
type HelperSet int

const (
	// BaseHelpers are include, file, task_id, url_for and gen_par_id.
	BaseHelpers HelperSet = iota
	// DocumentHelpers adds area, docsettings, ref_area and task.
	DocumentHelpers
)

// Result is the output of one render.
type Result struct {
	Markup string
	// Uploads maps absolute local paths to content addressed asset names.
	Uploads map[string]string
}

// Renderer renders templates. It is immutable and safe for concurrent use.
type Renderer struct {
	fs       afero.Fs
	set      HelperSet
	partials map[string]string
	scripts  *Scripts
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPartials registers named partial templates.
func WithPartials(partials map[string]string) Option {
	return func(r *Renderer) { r.partials = partials }
}

// WithScripts registers the functions of a script set as helpers.
func WithScripts(s *Scripts) Option {
	return func(r *Renderer) { r.scripts = s }
}

// New returns a Renderer reading included files from fsys.
func New(fsys afero.Fs, set HelperSet, opts ...Option) *Renderer {
	r := &Renderer{fs: fsys, set: set}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render executes source, the contents of file, with vars as the template
// data. vars is normally site.Vars() extended with the document fields.
func (r *Renderer) Render(site *globalctx.Context, file, source string, vars map[string]any) (Result, error) {
	st := &state{r: r, site: site, uploads: map[string]string{}}
	out, err := st.exec(source, vars, 0)
	if err != nil {
		return Result{}, &Error{File: file, Err: err}
	}
	return Result{Markup: out, Uploads: st.uploads}, nil
}

// state is the per render scratch space the helpers write into.
type state struct {
	r       *Renderer
	site    *globalctx.Context
	uploads map[string]string
	err     error
}

func (st *state) exec(source string, vars map[string]any, depth int) (out string, err error) {
	if depth > maxIncludeDepth {
		return "", fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}
	tpl, err := raymond.Parse(prepare(source))
	if err != nil {
		return "", err
	}
	st.register(tpl, vars, depth)
	for name, src := range st.r.partials {
		tpl.RegisterPartial(name, prepare(src))
	}
	out, err = tpl.Exec(vars)
	if st.err != nil {
		return "", st.err
	}
	return out, err
}

// fail aborts the render from inside a helper.
func (st *state) fail(err error) {
	if st.err == nil {
		st.err = err
	}
	panic(err)
}

// ResolvePath resolves target as referenced from the project file localFile.
// Targets starting with "/" are relative to the project root.
func ResolvePath(projectDir, localFile, target string) string {
	if strings.HasPrefix(target, "/") {
		return filepath.Join(projectDir, filepath.FromSlash(target[1:]))
	}
	return filepath.Join(projectDir, filepath.Dir(filepath.FromSlash(localFile)), filepath.FromSlash(target))
}

// AssetName is the content addressed remote name of a file: the sha1 of its
// bytes followed by the full extension of name (".tar.gz" for "a.tar.gz").
func AssetName(name string, data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]) + FullExt(name)
}

// FullExt returns everything from the first dot of the base name of p.
func FullExt(p string) string {
	base := filepath.Base(p)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[i:]
	}
	return ""
}

// positionalHelpers maps helpers that take their leading positional argument
// as a hash parameter to that parameter's name.
var positionalHelpers = map[string]string{
	"#area":      "name",
	"gen_par_id": "seed",
}

var positionalArg = regexp.MustCompile(`\{\{(\{?~?)\s*(#area|gen_par_id)\s+("[^"]*"|'[^']*'|[^\s="'}]+)(\s|~?\}\})`)

// prepare normalizes source before parsing.
func prepare(src string) string {
	return tripleStash(hashPositional(src))
}

// hashPositional turns {{#area "x"}} into {{#area name="x"}} and
// {{gen_par_id "x"}} into {{gen_par_id seed="x"}}. The hash forms are kept.
func hashPositional(src string) string {
	return positionalArg.ReplaceAllStringFunc(src, func(m string) string {
		g := positionalArg.FindStringSubmatch(m)
		return "{{" + g[1] + g[2] + " " + positionalHelpers[g[2]] + "=" + g[3] + g[4]
	})
}

// tripleStash rewrites plain {{expr}} mustaches to {{{expr}}} so values are
// inserted without HTML escaping. Block, partial, comment and else tags are
// left as they are.
func tripleStash(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		j := strings.Index(src[i:], "{{")
		if j < 0 {
			b.WriteString(src[i:])
			break
		}
		j += i
		b.WriteString(src[i:j])
		if (j > 0 && src[j-1] == '\\') || j+2 >= len(src) || strings.IndexByte("{#/!>^&~*", src[j+2]) >= 0 {
			b.WriteString("{{")
			i = j + 2
			continue
		}
		end := closing(src, j+2)
		if end < 0 {
			b.WriteString(src[j:])
			break
		}
		inner := src[j+2 : end]
		fields := strings.Fields(inner)
		if len(fields) == 0 || fields[0] == "else" || strings.HasSuffix(inner, "~") {
			b.WriteString(src[j : end+2])
		} else {
			b.WriteString("{{{" + inner + "}}}")
		}
		i = end + 2
	}
	return b.String()
}

// closing finds the "}}" ending a mustache opened before from, skipping
// quoted strings.
func closing(src string, from int) int {
	var quote byte
	for k := from; k < len(src)-1; k++ {
		c := src[k]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '}' && src[k+1] == '}':
			return k
		}
	}
	return -1
}
