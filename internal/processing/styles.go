package processing

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/JYU-DI/timsync/internal/files"
	"github.com/JYU-DI/timsync/internal/globalctx"
)

// StyleThemes publishes CSS/SCSS files as TIM style theme documents. Files
// are rendered like Markdown documents without link rewriting.
type StyleThemes struct {
	md     *Markdown
	byName map[string]string
}

// NewStyleThemes returns the style theme processor.
func NewStyleThemes(env Env) *StyleThemes {
	md := NewMarkdown(env)
	md.kind = files.KindStyleTheme
	md.rewrite = false
	return &StyleThemes{md: md, byName: map[string]string{}}
}

func (p *StyleThemes) Kind() files.Kind { return files.KindStyleTheme }

func (p *StyleThemes) AddFile(f *files.File) error {
	name := filepath.Base(f.Path())
	if existing, ok := p.byName[name]; ok {
		return fmt.Errorf("Cannot add file '%s' as a style theme. Another theme file with the same name is already registered from '%s'. Theme file names must be unique within the project.", existing, f.Path())
	}
	p.byName[name] = f.Path()
	return p.md.AddFile(f)
}

// Context publishes style_themes: theme name to remote document URL path.
func (p *StyleThemes) Context() map[string]any {
	themes := map[string]any{}
	for _, doc := range p.md.Documents() {
		themes[path.Base(doc.Path)] = "/" + p.md.env.FolderRoot + "/" + doc.Path
	}
	return map[string]any{"style_themes": themes}
}

func (p *StyleThemes) Documents() []*Document { return p.md.Documents() }

func (p *StyleThemes) FrontMatter(doc *Document) (map[string]any, error) {
	return p.md.FrontMatter(doc)
}

func (p *StyleThemes) LocalPath(doc *Document) string { return p.md.LocalPath(doc) }

func (p *StyleThemes) Render(site *globalctx.Context, doc *Document) (Prepared, error) {
	res, err := p.md.Render(site, doc)
	if err != nil {
		return Prepared{}, err
	}
	res.Markup = fmt.Sprintf("``` {settings=\"\"}\ndescription: \"%s\"\n```\n\n```scss\n%s\n```", doc.Title, strings.TrimSpace(res.Markup))
	return res, nil
}
