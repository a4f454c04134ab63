package timtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JYU-DI/timsync/internal/tim"
)

func TestFakeRequiresParentFolder(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.AddFolder("root", "Root")

	err := f.CreateItem(ctx, tim.Document, "root/a/b", "B")
	require.Error(t, err)

	require.NoError(t, f.CreateItem(ctx, tim.Folder, "root/a", "A"))
	require.NoError(t, f.CreateItem(ctx, tim.Document, "root/a/b", "B"))

	info, ok := f.Item("root/a/b")
	require.True(t, ok)
	assert.Equal(t, tim.Document, info.Type)
	assert.Equal(t, "root/a", info.Location)
	assert.Equal(t, "b", info.ShortName)
	assert.Equal(t, "root/a/b", info.Path())
}

func TestFakeCreateOrUpdate(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.AddFolder("root", "Root")
	f.AddDocument("root/doc", "Old", "text")

	info, err := f.CreateOrUpdateItem(ctx, tim.Document, "root/doc", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", info.Title)
	assert.Len(t, f.CallsOf(OpSetTitle), 1)

	_, err = f.CreateOrUpdateItem(ctx, tim.Folder, "root/doc", "New")
	var typeErr *tim.ItemTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, tim.Document, typeErr.Got)
}

func TestFakeMarkdownAndFiles(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.AddDocument("root/doc", "Doc", "")

	require.NoError(t, f.UploadMarkdown(ctx, "root/doc", "# hi"))
	got, err := f.DownloadMarkdown(ctx, "root/doc")
	require.NoError(t, err)
	assert.Equal(t, "# hi", got)

	_, err = f.DownloadMarkdown(ctx, "root")
	var typeErr *tim.ItemTypeError
	require.ErrorAs(t, err, &typeErr)

	_, err = f.GetItemInfo(ctx, "missing")
	assert.ErrorIs(t, err, tim.ErrNotFound)

	require.NoError(t, f.UploadFile(ctx, "root/doc", "abc.png", []byte{1, 2}))
	data, ok := f.File("root/doc/abc.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, data)
	assert.Equal(t, []string{"root/doc/abc.png"}, f.Files())
}

func TestFakeFailOn(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.AddDocument("doc", "Doc", "")
	boom := assert.AnError
	f.FailOn(OpUpload, "doc", boom)

	assert.ErrorIs(t, f.UploadMarkdown(ctx, "doc", "x"), boom)
	f.Reset()
	assert.Empty(t, f.Calls())
}
