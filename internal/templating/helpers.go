package templating

import (
	"fmt"
	"maps"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/parid"
)

// register binds the helpers of the renderer's set to st and vars.
func (st *state) register(tpl *raymond.Template, vars map[string]any, depth int) {
	helpers := map[string]any{
		"include":    st.includeHelper(vars, depth),
		"file":       st.fileHelper(vars),
		"task_id":    st.taskIDHelper,
		"url_for":    st.urlForHelper,
		"gen_par_id": genParIDHelper,
	}
	if st.r.set == DocumentHelpers {
		helpers["area"] = areaHelper
		helpers["docsettings"] = docsettingsHelper
		helpers["ref_area"] = st.refAreaHelper
		helpers["task"] = st.taskHelper
	}
	if st.r.scripts != nil {
		for name := range st.r.scripts.fns {
			if _, builtin := helpers[name]; !builtin {
				helpers[name] = st.scriptHelper(name)
			}
		}
	}
	tpl.RegisterHelpers(helpers)
}

func areaHelper(options *raymond.Options) raymond.SafeString {
	name := options.HashStr("name")
	if name == "" {
		name = "area-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	collapse := raymond.IsTrue(options.HashProp("collapse"))

	attrs := []string{fmt.Sprintf("area=%q", name)}
	if collapse {
		attrs = append(attrs, `collapse="true"`)
	}
	if class := options.HashStr("class"); class != "" {
		attrs = append(attrs, class)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#- {%s}\n", strings.Join(attrs, " "))
	if !collapse {
		b.WriteString("\n#-\n")
	}
	b.WriteString(options.Fn())
	if inverse := options.Inverse(); inverse != "" {
		b.WriteString("#-\n")
		b.WriteString(inverse)
	}
	fmt.Fprintf(&b, "#- {area_end=%q}\n\n#-\n", name)
	return raymond.SafeString(b.String())
}

func docsettingsHelper(options *raymond.Options) raymond.SafeString {
	return raymond.SafeString("``` {settings=\"\"}\n\n" + options.Fn() + "\n```\n\n")
}

func genParIDHelper(options *raymond.Options) raymond.SafeString {
	return raymond.SafeString(parid.Hashed(options.HashStr("seed")))
}

func (st *state) refAreaHelper(docID any, area string) raymond.SafeString {
	id, err := strconv.ParseUint(raymond.Str(docID), 10, 64)
	if err != nil {
		st.fail(fmt.Errorf("ref_area: document id %v is not a non-negative integer", docID))
	}
	return raymond.SafeString(fmt.Sprintf("#- {rd=\"%d\" ra=%q}", id, area))
}

// tasks returns the task paragraph ids and the id of the task document.
func (st *state) tasks() (map[string]string, int64) {
	refs, ok := st.site.StringMap(TasksRefMapKey)
	if !ok {
		st.fail(&helperError{kind: ErrNoTasks, msg: "There are no tasks registered in the project. Add tasks (`.task.yml` files) to the project to use the task helper."})
	}
	doc, ok := st.site.Document(TasksUID)
	if !ok {
		st.fail(&helperError{kind: ErrMissingContext, msg: "the task document is missing from the document list"})
	}
	return refs, doc.ID
}

func unknownTask(uid string) error {
	return &helperError{kind: ErrUnknownTask, msg: fmt.Sprintf("Task with UID '%s' is not registered in the project. Check that the UID is written correctly.", uid)}
}

func (st *state) taskHelper(uid string) raymond.SafeString {
	refs, docID := st.tasks()
	par, ok := refs[uid]
	if !ok {
		st.fail(unknownTask(uid))
	}
	return raymond.SafeString(fmt.Sprintf("#- { rd=\"%d\" rp=\"%s\" id=\"%s\" }\n#-\n", docID, par, parid.Hashed(uid)))
}

func (st *state) taskIDHelper(uid string) raymond.SafeString {
	refs, docID := st.tasks()
	if _, ok := refs[uid]; !ok {
		st.fail(unknownTask(uid))
	}
	return raymond.SafeString(fmt.Sprintf("%d.%s", docID, uid))
}

func (st *state) urlForHelper(uid string, options *raymond.Options) raymond.SafeString {
	view := "view"
	if v, ok := options.Hash()["view"]; ok {
		view, _ = v.(string)
	}
	doc, ok := st.site.Document(uid)
	if !ok {
		st.fail(&helperError{kind: ErrUnknownDocument, msg: fmt.Sprintf("Document with uid '%s' not found in the project", uid)})
	}
	if view == "" {
		return raymond.SafeString(st.site.BasePath() + "/" + doc.Path)
	}
	return raymond.SafeString("/" + view + "/" + st.site.BasePath() + "/" + doc.Path)
}

// resolve turns a helper path argument into an absolute local path.
func (st *state) resolve(vars map[string]any, target string) string {
	local, ok := vars[KeyLocalFile].(string)
	if !ok && !strings.HasPrefix(target, "/") {
		st.fail(&helperError{kind: ErrMissingContext, msg: fmt.Sprintf("cannot resolve %q: %s is not set", target, KeyLocalFile)})
	}
	return ResolvePath(st.site.ProjectDir(), local, target)
}

func (st *state) fileHelper(vars map[string]any) func(string) raymond.SafeString {
	return func(target string) raymond.SafeString {
		docPath, ok := vars[KeyPath].(string)
		if !ok {
			st.fail(&helperError{kind: ErrMissingContext, msg: "To use the 'file' helper, the template must have 'path' attribute available in context"})
		}
		abs := st.resolve(vars, target)
		data, err := afero.ReadFile(st.r.fs, abs)
		if err != nil {
			st.fail(fmt.Errorf("file %s: %w", target, err))
		}
		name := AssetName(abs, data)
		st.uploads[abs] = name
		return raymond.SafeString("/files/" + st.site.BasePath() + "/" + docPath + "/" + name)
	}
}

func (st *state) includeHelper(vars map[string]any, depth int) func(string, *raymond.Options) raymond.SafeString {
	return func(target string, options *raymond.Options) raymond.SafeString {
		abs := st.resolve(vars, target)
		data, err := afero.ReadFile(st.r.fs, abs)
		if err != nil {
			st.fail(fmt.Errorf("include %s: %w", target, err))
		}
		if !raymond.IsTrue(options.HashProp("template")) {
			return raymond.SafeString(data)
		}

		nested := maps.Clone(vars)
		rel, err := filepath.Rel(st.site.ProjectDir(), abs)
		if err != nil {
			rel = abs
		}
		nested[KeyLocalFile] = filepath.ToSlash(rel)
		out, err := st.exec(string(data), nested, depth+1)
		if err != nil {
			st.err = nil
			st.fail(fmt.Errorf("render included file %s: %w", abs, err))
		}
		return raymond.SafeString(out)
	}
}
