package processing

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JYU-DI/timsync/internal/files"
	"github.com/JYU-DI/timsync/internal/frontmatter"
	"github.com/JYU-DI/timsync/internal/globalctx"
	"github.com/JYU-DI/timsync/internal/parid"
	"github.com/JYU-DI/timsync/internal/templating"
)

// The synthetic document holding every task of the project.
const (
	TasksPath  = "_project_tasks"
	TasksTitle = "Project tasks"
)

type task struct {
	uid      string
	parID    string
	file     *files.File
	rel      string
	settings frontmatter.Settings
	front    map[string]any
}

// Tasks collects *.task.yml files into a single document with one plugin
// paragraph per task.
type Tasks struct {
	env      Env
	renderer *templating.Renderer
	tasks    map[string]*task
}

// NewTasks returns the task processor. Task bodies only see the base
// helpers.
func NewTasks(env Env) *Tasks {
	return &Tasks{env: env, renderer: env.renderer(templating.BaseHelpers), tasks: map[string]*task{}}
}

func (p *Tasks) Kind() files.Kind { return files.KindTask }

func (p *Tasks) AddFile(f *files.File) error {
	settings, front, err := f.Settings()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(p.env.ProjectDir, f.Path())
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", f.Path(), err)
	}
	if settings.UID == "" {
		return fmt.Errorf("task %s: `uid` must be set in order to be processed as a task", rel)
	}
	if other, ok := p.tasks[settings.UID]; ok {
		return fmt.Errorf("task %s: task with UID `%s` already exists in the project in path %s", rel, settings.UID, other.rel)
	}
	if settings.Plugin == "" {
		return fmt.Errorf("task %s: `plugin` must be set", rel)
	}
	p.tasks[settings.UID] = &task{
		uid:      settings.UID,
		parID:    parid.Hashed(settings.UID),
		file:     f,
		rel:      filepath.ToSlash(rel),
		settings: settings,
		front:    front,
	}
	return nil
}

// Context publishes the paragraph id of every task under the uid. Nothing is
// published when the project has no tasks.
func (p *Tasks) Context() map[string]any {
	if len(p.tasks) == 0 {
		return nil
	}
	refs := make(map[string]any, len(p.tasks))
	for uid, t := range p.tasks {
		refs[uid] = t.parID
	}
	return map[string]any{templating.TasksRefMapKey: refs}
}

func (p *Tasks) Documents() []*Document {
	if len(p.tasks) == 0 {
		return nil
	}
	return []*Document{{Title: TasksTitle, Path: TasksPath}}
}

func (p *Tasks) FrontMatter(*Document) (map[string]any, error) {
	return map[string]any{"uid": templating.TasksUID}, nil
}

func (p *Tasks) LocalPath(*Document) string { return "" }

func (p *Tasks) sorted() []*task {
	out := make([]*task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uid < out[j].uid })
	return out
}

func (p *Tasks) Render(site *globalctx.Context, _ *Document) (Prepared, error) {
	var b strings.Builder
	uploads := map[string]string{}
	for _, t := range p.sorted() {
		body, err := t.file.Body()
		if err != nil {
			return Prepared{}, err
		}
		vars := site.Vars()
		maps.Copy(vars, t.front)
		vars[templating.KeyPath] = TasksPath
		vars[templating.KeyLocalFile] = t.rel

		res, err := p.renderer.Render(site, t.rel, body, vars)
		if err != nil {
			return Prepared{}, err
		}
		maps.Copy(uploads, res.Uploads)

		header, err := t.header()
		if err != nil {
			return Prepared{}, err
		}
		b.WriteString(header)
		b.WriteString(res.Markup)
		b.WriteString("\n\n```\n\n")
	}
	return Prepared{Markup: b.String(), Uploads: uploads}, nil
}

// header opens the plugin paragraph of t.
func (t *task) header() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "``` {#%s  id=\"%s\" plugin=\"%s\" ", t.uid, t.parID, t.settings.Plugin)

	keys := make([]string, 0, len(t.settings.PluginAttributes))
	for k := range t.settings.PluginAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, ok := t.settings.PluginAttributes[k].(string)
		if !ok {
			data, err := json.Marshal(t.settings.PluginAttributes[k])
			if err != nil {
				return "", fmt.Errorf("task %s: attribute %s: %w", t.uid, k, err)
			}
			value = string(data)
		}
		fmt.Fprintf(&b, "%s=\"%s\" ", k, value)
	}
	if len(t.settings.Class) > 0 {
		b.WriteString("." + strings.Join(t.settings.Class, " .") + " ")
	}
	b.WriteString("}\n\n")
	return b.String(), nil
}
