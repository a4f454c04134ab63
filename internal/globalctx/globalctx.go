// Package globalctx holds project wide template data. A Builder collects the
// data while the remote structure is created; Freeze turns it into a
// read-only Context that concurrent renders share.
package globalctx

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Keys inside the site map.
const (
	KeySite       = "site"
	KeyDoc        = "doc"
	KeyDocs       = "docs"
	KeyHost       = "host"
	KeyBasePath   = "base_path"
	KeyProjectDir = "local_project_dir"
)

// DefaultSiteData is written to _config.yml by `timsync init`.
const DefaultSiteData = `#
# This config file is meant for settings that affect your whole TIM page.
# You can access these values throughout all documents by using the ` + "`site`" + ` variable.
# For example, you can use ` + "`{{ site.title }}`" + ` to access the title of your page.

# The title of your page
title: My TIM page
`

// DocInfo describes a synchronized document as seen by templates.
type DocInfo struct {
	ID    int64
	Path  string
	Title string
}

// Map returns the template representation of d.
func (d DocInfo) Map() map[string]any {
	return map[string]any{"doc_id": d.ID, "path": d.Path, "title": d.Title}
}

// Builder accumulates site data. It must not be used after Freeze.
type Builder struct {
	site   map[string]any
	frozen bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{site: map[string]any{}}
}

// LoadSiteData merges the YAML mapping stored at path into the site data.
// A missing file is not an error.
func (b *Builder) LoadSiteData(fsys afero.Fs, path string) error {
	b.checkOpen()
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read site data %s: %w", path, err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse site data %s: %w", path, err)
	}
	maps.Copy(b.site, values)
	return nil
}

// Set stores one site value.
func (b *Builder) Set(key string, value any) *Builder {
	b.checkOpen()
	b.site[key] = value
	return b
}

// Merge stores every entry of values, overwriting existing keys.
func (b *Builder) Merge(values map[string]any) *Builder {
	b.checkOpen()
	maps.Copy(b.site, values)
	return b
}

// SetDocuments publishes the uid map and the full document list.
func (b *Builder) SetDocuments(byUID map[string]DocInfo, all []DocInfo) *Builder {
	docMap := make(map[string]any, len(byUID))
	for uid, info := range byUID {
		docMap[uid] = info.Map()
	}
	docList := make([]any, 0, len(all))
	for _, info := range all {
		docList = append(docList, info.Map())
	}
	b.Set(KeyDoc, docMap)
	return b.Set(KeyDocs, docList)
}

// Freeze converts the builder into an immutable Context. Calling Freeze (or
// any other method) afterwards is a programming error and panics.
func (b *Builder) Freeze() *Context {
	b.checkOpen()
	b.frozen = true
	return &Context{site: b.site}
}

func (b *Builder) checkOpen() {
	if b.frozen {
		panic("globalctx: builder used after the context was frozen")
	}
}

// Context is the frozen site data. It is safe for concurrent readers.
type Context struct {
	site map[string]any
}

// Vars returns a fresh top level variable map holding the site data under
// the "site" key. Callers may add keys to the returned map but must not
// modify the site map itself.
func (c *Context) Vars() map[string]any {
	return map[string]any{KeySite: c.site}
}

// Lookup returns a site value.
func (c *Context) Lookup(key string) (any, bool) {
	v, ok := c.site[key]
	return v, ok
}

// String returns a site value as a string, or "" if it is absent or not a
// string.
func (c *Context) String(key string) string {
	s, _ := c.site[key].(string)
	return s
}

// BasePath is the remote folder root of the sync target.
func (c *Context) BasePath() string { return c.String(KeyBasePath) }

// ProjectDir is the absolute local project root.
func (c *Context) ProjectDir() string { return c.String(KeyProjectDir) }

// Document looks up a document by its front matter uid.
func (c *Context) Document(uid string) (DocInfo, bool) {
	docs, _ := c.site[KeyDoc].(map[string]any)
	entry, ok := docs[uid].(map[string]any)
	if !ok {
		return DocInfo{}, false
	}
	info := DocInfo{}
	info.ID, _ = entry["doc_id"].(int64)
	info.Path, _ = entry["path"].(string)
	info.Title, _ = entry["title"].(string)
	return info, true
}

// StringMap returns a site value that holds a string to string mapping.
func (c *Context) StringMap(key string) (map[string]string, bool) {
	switch m := c.site[key].(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
