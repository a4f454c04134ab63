package globalctx

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderLoadSiteData(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/_config.yml", []byte("title: Course\nteachers:\n  - alice\n"), 0o644))

	b := NewBuilder()
	require.NoError(t, b.LoadSiteData(fs, "/p/_config.yml"))
	ctx := b.Set(KeyBasePath, "kurssit/x").Freeze()

	assert.Equal(t, "Course", ctx.String("title"))
	assert.Equal(t, "kurssit/x", ctx.BasePath())
	teachers, ok := ctx.Lookup("teachers")
	require.True(t, ok)
	assert.Equal(t, []any{"alice"}, teachers)
}

func TestBuilderMissingSiteDataIsIgnored(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.LoadSiteData(afero.NewMemMapFs(), "/p/_config.yml"))
	assert.Empty(t, b.Freeze().Vars()[KeySite])
}

func TestBuilderInvalidSiteData(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/_config.yml", []byte("title: [x\n"), 0o644))
	err := NewBuilder().LoadSiteData(fs, "/p/_config.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "_config.yml")
}

func TestFreezeTwicePanics(t *testing.T) {
	b := NewBuilder()
	b.Freeze()
	assert.Panics(t, func() { b.Freeze() })
	assert.Panics(t, func() { b.Set("k", "v") })
}

func TestDocumentsLookup(t *testing.T) {
	ctx := NewBuilder().SetDocuments(
		map[string]DocInfo{"guide": {ID: 42, Path: "docs/guide", Title: "Guide"}},
		[]DocInfo{{ID: 42, Path: "docs/guide", Title: "Guide"}, {ID: 7, Path: "index", Title: "Home"}},
	).Freeze()

	info, ok := ctx.Document("guide")
	require.True(t, ok)
	assert.Equal(t, DocInfo{ID: 42, Path: "docs/guide", Title: "Guide"}, info)

	_, ok = ctx.Document("missing")
	assert.False(t, ok)

	docs, _ := ctx.Lookup(KeyDocs)
	assert.Len(t, docs, 2)
}

func TestStringMap(t *testing.T) {
	ctx := NewBuilder().
		Set("typed", map[string]string{"a": "1"}).
		Set("loose", map[string]any{"b": "2"}).
		Set("mixed", map[string]any{"c": 3}).
		Freeze()

	m, ok := ctx.StringMap("typed")
	require.True(t, ok)
	assert.Equal(t, "1", m["a"])

	m, ok = ctx.StringMap("loose")
	require.True(t, ok)
	assert.Equal(t, "2", m["b"])

	_, ok = ctx.StringMap("mixed")
	assert.False(t, ok)
}

func TestVarsReturnsFreshTopLevelMap(t *testing.T) {
	ctx := NewBuilder().Set("title", "x").Freeze()
	vars := ctx.Vars()
	vars["title"] = "local"
	assert.NotContains(t, ctx.Vars(), "title")
}
