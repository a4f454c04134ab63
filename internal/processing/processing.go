// Package processing turns classified project files into remote documents.
// Each file kind has a Processor; a Registry owns them and routes rendering
// through the processor handle stored in every Document.
package processing

import (
	"fmt"
	"maps"

	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/files"
	"github.com/JYU-DI/timsync/internal/globalctx"
	"github.com/JYU-DI/timsync/internal/templating"
)

// Handle identifies the processor that owns a Document.
type Handle int

// Document is one remote document produced by a processor. Path is relative
// to the sync root and unique across the run.
type Document struct {
	Title string
	Path  string
	// ID is the remote id, zero until the remote tree has been created.
	ID int64

	handle Handle
}

// Prepared is the rendered content of a document.
type Prepared struct {
	Markup string
	// Uploads maps absolute local paths to their remote asset names.
	Uploads map[string]string
}

// Processor handles the files of one kind.
type Processor interface {
	Kind() files.Kind
	AddFile(f *files.File) error
	// Context returns the values the processor publishes to the site data.
	Context() map[string]any
	Documents() []*Document
	Render(site *globalctx.Context, doc *Document) (Prepared, error)
	FrontMatter(doc *Document) (map[string]any, error)
	// LocalPath is the source file of doc, or "" for synthetic documents.
	LocalPath(doc *Document) string
}

// Env is what processors need to know about the project and the target.
type Env struct {
	FS         afero.Fs
	ProjectDir string
	// FolderRoot is the remote root folder of the sync target.
	FolderRoot string
	Partials   map[string]string
	Scripts    *templating.Scripts
}

func (e Env) renderer(set templating.HelperSet) *templating.Renderer {
	opts := []templating.Option{templating.WithPartials(e.Partials)}
	if e.Scripts != nil {
		opts = append(opts, templating.WithScripts(e.Scripts))
	}
	return templating.New(e.FS, set, opts...)
}

// Registry owns the processors of a run.
type Registry struct {
	processors []Processor
	byKind     map[files.Kind]Handle
}

// NewRegistry returns a registry with the markdown, task and style theme
// processors.
func NewRegistry(env Env) *Registry {
	return NewRegistryWith(NewMarkdown(env), NewTasks(env), NewStyleThemes(env))
}

// NewRegistryWith returns a registry owning the given processors.
func NewRegistryWith(processors ...Processor) *Registry {
	r := &Registry{byKind: map[files.Kind]Handle{}}
	for i, p := range processors {
		r.processors = append(r.processors, p)
		r.byKind[p.Kind()] = Handle(i)
	}
	return r
}

// AddFile passes f to the processor of its kind. It reports false when no
// processor handles the kind.
func (r *Registry) AddFile(f *files.File) (bool, error) {
	h, ok := r.byKind[f.Kind()]
	if !ok {
		return false, nil
	}
	return true, r.processors[h].AddFile(f)
}

// Documents lists the documents of every processor.
func (r *Registry) Documents() []*Document {
	var docs []*Document
	for i, p := range r.processors {
		for _, d := range p.Documents() {
			d.handle = Handle(i)
			docs = append(docs, d)
		}
	}
	return docs
}

// Context merges the values published by all processors.
func (r *Registry) Context() map[string]any {
	out := map[string]any{}
	for _, p := range r.processors {
		maps.Copy(out, p.Context())
	}
	return out
}

func (r *Registry) owner(doc *Document) Processor {
	if int(doc.handle) < 0 || int(doc.handle) >= len(r.processors) {
		panic(fmt.Sprintf("processing: document %q has no owning processor", doc.Path))
	}
	return r.processors[doc.handle]
}

// Render renders doc with its owning processor.
func (r *Registry) Render(site *globalctx.Context, doc *Document) (Prepared, error) {
	return r.owner(doc).Render(site, doc)
}

// FrontMatter returns the header values of doc.
func (r *Registry) FrontMatter(doc *Document) (map[string]any, error) {
	return r.owner(doc).FrontMatter(doc)
}

// UID returns the uid declared by doc, if any.
func (r *Registry) UID(doc *Document) (string, error) {
	front, err := r.FrontMatter(doc)
	if err != nil {
		return "", err
	}
	uid, _ := front["uid"].(string)
	return uid, nil
}

// Lookup finds the document produced from the local file path.
func (r *Registry) Lookup(docs []*Document, localPath string) (*Document, bool) {
	for _, d := range docs {
		if r.owner(d).LocalPath(d) == localPath {
			return d, true
		}
	}
	return nil, false
}
