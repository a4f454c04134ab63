package processing

import (
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JYU-DI/timsync/internal/files"
	"github.com/JYU-DI/timsync/internal/globalctx"
	"github.com/JYU-DI/timsync/internal/mdlinks"
	"github.com/JYU-DI/timsync/internal/templating"
)

type markdownEntry struct {
	file  *files.File
	rel   string
	title string
	path  string
	front map[string]any
}

// Markdown makes one document of every file it is given.
type Markdown struct {
	env      Env
	kind     files.Kind
	renderer *templating.Renderer
	rewrite  bool

	entries map[string]*markdownEntry
	// byLocal maps absolute source paths to remote paths.
	byLocal map[string]string
}

// NewMarkdown returns the processor for Markdown files. Relative links in
// the rendered markup are rewritten to remote URLs.
func NewMarkdown(env Env) *Markdown {
	return &Markdown{
		env:      env,
		kind:     files.KindMarkdown,
		renderer: env.renderer(templating.DocumentHelpers),
		rewrite:  true,
		entries:  map[string]*markdownEntry{},
		byLocal:  map[string]string{},
	}
}

func (m *Markdown) Kind() files.Kind { return m.kind }

// RemotePath derives the remote document path of a project relative source
// path: extension stripped, slash separated and lower case.
func RemotePath(rel string) string {
	return normalizePath(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

func normalizePath(p string) string {
	return cases.Lower(language.Und).String(strings.ReplaceAll(p, `\`, "/"))
}

func (m *Markdown) AddFile(f *files.File) error {
	settings, front, err := f.Settings()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(m.env.ProjectDir, f.Path())
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", f.Path(), err)
	}

	title := settings.Title
	if title == "" {
		base := filepath.Base(f.Path())
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	path := RemotePath(rel)
	if settings.Path != "" {
		path = normalizePath(strings.Trim(settings.Path, "/"))
	}

	if other, ok := m.entries[path]; ok {
		return fmt.Errorf("document path %q of %s is already used by %s", path, rel, other.rel)
	}
	m.entries[path] = &markdownEntry{file: f, rel: filepath.ToSlash(rel), title: title, path: path, front: front}
	m.byLocal[f.Path()] = path
	return nil
}

func (m *Markdown) Context() map[string]any { return nil }

func (m *Markdown) Documents() []*Document {
	docs := make([]*Document, 0, len(m.entries))
	for _, e := range m.entries {
		docs = append(docs, &Document{Title: e.title, Path: e.path})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}

func (m *Markdown) entry(doc *Document) *markdownEntry {
	e, ok := m.entries[doc.Path]
	if !ok {
		panic(fmt.Sprintf("processing: unknown markdown document %q", doc.Path))
	}
	return e
}

func (m *Markdown) FrontMatter(doc *Document) (map[string]any, error) {
	return m.entry(doc).front, nil
}

func (m *Markdown) LocalPath(doc *Document) string { return m.entry(doc).file.Path() }

func (m *Markdown) Render(site *globalctx.Context, doc *Document) (Prepared, error) {
	e := m.entry(doc)
	body, err := e.file.Body()
	if err != nil {
		return Prepared{}, err
	}

	vars := site.Vars()
	maps.Copy(vars, e.front)
	vars["title"] = doc.Title
	vars[templating.KeyPath] = doc.Path
	vars["doc_id"] = doc.ID
	vars[templating.KeyLocalFile] = e.rel

	res, err := m.renderer.Render(site, e.rel, body, vars)
	if err != nil {
		return Prepared{}, err
	}
	if m.rewrite {
		res.Markup = m.rewriteLinks(res.Markup, e, doc, res.Uploads)
	}
	return Prepared{Markup: res.Markup, Uploads: res.Uploads}, nil
}

// rewriteLinks points relative link and image destinations at the remote
// copies: documents become view URLs, other files become uploaded assets.
func (m *Markdown) rewriteLinks(markup string, e *markdownEntry, doc *Document, uploads map[string]string) string {
	spans := mdlinks.Scan([]byte(markup))
	if len(spans) == 0 {
		return markup
	}
	return mdlinks.Rewrite(markup, spans, func(s mdlinks.Span) (string, bool) {
		u, err := url.Parse(s.Dest)
		if err != nil || u.Scheme != "" || u.Path == "" || strings.HasPrefix(s.Dest, "/") {
			return "", false
		}
		suffix := ""
		if u.RawQuery != "" {
			suffix += "?" + u.RawQuery
		}
		if u.Fragment != "" {
			suffix += "#" + u.Fragment
		}

		abs := templating.ResolvePath(m.env.ProjectDir, e.rel, u.Path)
		if remote, ok := m.byLocal[abs]; ok {
			return "/view/" + m.env.FolderRoot + "/" + remote + suffix, true
		}
		if strings.EqualFold(filepath.Ext(abs), ".md") {
			rel, err := filepath.Rel(m.env.ProjectDir, strings.TrimSuffix(abs, filepath.Ext(abs)))
			if err != nil {
				return "", false
			}
			return "/view/" + m.env.FolderRoot + "/" + filepath.ToSlash(rel) + suffix, true
		}

		data, err := afero.ReadFile(m.env.FS, abs)
		if err != nil {
			return "", false
		}
		name := templating.AssetName(abs, data)
		uploads[abs] = name
		return "/files/" + m.env.FolderRoot + "/" + doc.Path + "/" + name, true
	})
}
