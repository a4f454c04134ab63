package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/processing"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/stamp"
	"github.com/JYU-DI/timsync/internal/tim/timtest"
	"github.com/JYU-DI/timsync/internal/treesync"
)

const root = "kurssit/demo"

var target = config.Target{Host: "https://tim.example", FolderRoot: root, Username: "bot", Password: "pw"}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newProject(t *testing.T, sources map[string]string) *project.Project {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/proj", 0o755))
	p, err := project.Init(fsys, "/proj", project.InitOptions{Target: &target})
	require.NoError(t, err)
	for path, content := range sources {
		require.NoError(t, afero.WriteFile(fsys, "/proj/"+path, []byte(content), 0o644))
	}
	return p
}

func newFake() *timtest.Fake {
	f := timtest.New()
	f.AddFolder(root, "Demo")
	return f
}

var scenario = map[string]string{
	"index.md":      "---\ntitle: Home\n---\nWelcome to {{site.title}}",
	"docs/guide.md": "See [other](./other.md) and ![logo](./logo.png).",
	"docs/logo.png": "png",
	"README.md":     "not synced",
}

func TestRunEndToEnd(t *testing.T) {
	proj := newProject(t, scenario)
	f := newFake()

	report, err := New(f, proj, target).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Items)
	assert.Equal(t, 2, report.Uploaded)
	assert.Equal(t, 0, report.Unchanged)
	assert.Equal(t, 1, report.Assets)
	assert.Equal(t, "https://tim.example/view/kurssit/demo", report.ViewURL())
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "docs/guide", report.Documents[0].Path)
	assert.Equal(t, "index", report.Documents[1].Path)

	creates := f.CallsOf(timtest.OpCreate)
	require.Len(t, creates, 3)
	assert.ElementsMatch(t, []string{root + "/docs", root + "/index"}, []string{creates[0].Path, creates[1].Path})
	assert.Equal(t, root+"/docs/guide", creates[2].Path)

	index, ok := f.Item(root + "/index")
	require.True(t, ok)
	assert.Equal(t, "Home", index.Title)
	assert.Equal(t, index.ID, report.Documents[1].RemoteID)
	assert.Contains(t, f.Markdown(root+"/index"), "Welcome to My TIM page")

	logo := sha1Hex("png") + ".png"
	guide := f.Markdown(root + "/docs/guide")
	assert.Contains(t, guide, "[other](/view/kurssit/demo/docs/other)")
	assert.Contains(t, guide, "![logo](/files/kurssit/demo/docs/guide/"+logo+")")
	_, ok = stamp.Extract(guide)
	assert.True(t, ok)

	data, ok := f.File(root + "/docs/guide/" + logo)
	require.True(t, ok)
	assert.Equal(t, "png", string(data))
	_, ok = f.Item(root + "/README")
	assert.False(t, ok)
}

func TestRunIsIdempotent(t *testing.T) {
	proj := newProject(t, scenario)
	f := newFake()
	p := New(f, proj, target)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	f.Reset()

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Uploaded)
	assert.Equal(t, 2, report.Unchanged)
	assert.Empty(t, f.CallsOf(timtest.OpUpload))
	assert.Empty(t, f.CallsOf(timtest.OpUploadFile))
	assert.Empty(t, f.CallsOf(timtest.OpCreate))
	assert.Empty(t, f.CallsOf(timtest.OpSetTitle))
}

func TestRunUploadsOnlyChangedDocuments(t *testing.T) {
	proj := newProject(t, scenario)
	f := newFake()
	p := New(f, proj, target)
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	f.Reset()

	require.NoError(t, afero.WriteFile(proj.FS, "/proj/index.md", []byte("---\ntitle: Start\n---\nChanged"), 0o644))
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Unchanged)

	uploads := f.CallsOf(timtest.OpUpload)
	require.Len(t, uploads, 1)
	assert.Equal(t, root+"/index", uploads[0].Path)
	info, _ := f.Item(root + "/index")
	assert.Equal(t, "Start", info.Title)
}

func TestRunRetitlesDuringTreeSync(t *testing.T) {
	proj := newProject(t, scenario)
	f := newFake()
	p := New(f, proj, target)
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	f.Reset()

	require.NoError(t, afero.WriteFile(proj.FS, "/proj/index.md", []byte("---\ntitle: Begin\n---\nNew body"), 0o644))
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	titles := f.CallsOf(timtest.OpSetTitle)
	require.Len(t, titles, 1)
	assert.Equal(t, root+"/index", titles[0].Path)

	order := map[string]int{}
	for i, c := range f.Calls() {
		if _, seen := order[c.Op]; !seen {
			order[c.Op] = i
		}
	}
	assert.Less(t, order[timtest.OpSetTitle], order[timtest.OpUpload])
	info, _ := f.Item(root + "/index")
	assert.Equal(t, "Begin", info.Title)
}

func TestRunPublishesTaskIDs(t *testing.T) {
	proj := newProject(t, map[string]string{
		"tasks/t1.task.yml": "---\nuid: t1\nplugin: textfield\n---\nstem: hi",
		"index.md":          "{{task_id \"t1\"}}",
	})
	f := newFake()

	_, err := New(f, proj, target, WithConcurrency(1)).Run(context.Background())
	require.NoError(t, err)

	tasks, ok := f.Item(root + "/" + processing.TasksPath)
	require.True(t, ok)
	assert.Equal(t, processing.TasksTitle, tasks.Title)
	assert.Contains(t, f.Markdown(root+"/index"), fmt.Sprintf("%d.t1", tasks.ID))
	assert.Contains(t, f.Markdown(root+"/"+processing.TasksPath), "plugin=\"textfield\"")
}

func TestRunFailures(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		proj := newProject(t, scenario)
		_, err := New(timtest.New(), proj, target).Run(context.Background())
		require.ErrorIs(t, err, treesync.ErrSyncTargetDoesNotExist)
	})

	t.Run("conflict", func(t *testing.T) {
		proj := newProject(t, map[string]string{
			"a.md":   "x",
			"a/b.md": "y",
		})
		_, err := New(newFake(), proj, target).Run(context.Background())
		require.ErrorIs(t, err, treesync.ErrItemTypeConflict)
	})

	t.Run("upload error", func(t *testing.T) {
		proj := newProject(t, scenario)
		f := newFake()
		boom := errors.New("boom")
		f.FailOn(timtest.OpUpload, root+"/index", boom)
		_, err := New(f, proj, target).Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("render error", func(t *testing.T) {
		proj := newProject(t, map[string]string{"index.md": "{{task_id \"nope\"}}"})
		_, err := New(newFake(), proj, target).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index.md")
	})

	t.Run("missing password", func(t *testing.T) {
		proj := newProject(t, scenario)
		noPassword := target
		noPassword.Password = ""
		f := newFake()
		_, err := New(f, proj, noPassword).Run(context.Background())
		require.Error(t, err)
		assert.Empty(t, f.CallsOf(timtest.OpLogin))
	})
}

func TestPreview(t *testing.T) {
	proj := newProject(t, scenario)

	doc, prepared, err := Preview(proj, target, "/proj/docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/guide", doc.Path)
	assert.Zero(t, doc.ID)
	assert.Contains(t, prepared.Markup, "/view/kurssit/demo/docs/other")
	assert.Len(t, prepared.Uploads, 1)

	_, _, err = Preview(proj, target, "/proj/docs/logo.png")
	require.ErrorIs(t, err, ErrNoDocument)
}
