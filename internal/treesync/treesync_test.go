package treesync

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JYU-DI/timsync/internal/tim"
	"github.com/JYU-DI/timsync/internal/tim/timtest"
)

func newFake() *timtest.Fake {
	f := timtest.New()
	f.AddFolder("course", "Course")
	return f
}

func callIndex(calls []timtest.Call, path string) int {
	for i, c := range calls {
		if c.Path == path {
			return i
		}
	}
	return -1
}

func TestVerifyRoot(t *testing.T) {
	ctx := context.Background()

	f := newFake()
	require.NoError(t, New(f, "course").VerifyRoot(ctx))

	err := New(f, "missing", WithHost("https://tim.example/")).VerifyRoot(ctx)
	require.ErrorIs(t, err, ErrSyncTargetDoesNotExist)
	assert.Contains(t, err.Error(), "https://tim.example/missing does not exist in TIM")

	f.AddDocument("course/doc", "Doc", "")
	err = New(f, "course/doc").VerifyRoot(ctx)
	require.ErrorIs(t, err, ErrSyncTargetNotAFolder)
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "course/doc", pathErr.Path)
}

func TestSyncCreatesFolderBeforeChildren(t *testing.T) {
	f := newFake()
	docs := []Document{{Path: "a/b", Title: "B"}, {Path: "a/c", Title: "C"}, {Path: "index", Title: "Home"}}

	res, err := New(f, "course").Sync(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, res.IDs, 3)
	assert.NotEqual(t, res.IDs[0], res.IDs[1])
	assert.Len(t, res.Items, 4)

	calls := f.CallsOf(timtest.OpCreate)
	folder := callIndex(calls, "course/a")
	require.GreaterOrEqual(t, folder, 0)
	assert.Less(t, folder, callIndex(calls, "course/a/b"))
	assert.Less(t, folder, callIndex(calls, "course/a/c"))

	info, ok := f.Item("course/a")
	require.True(t, ok)
	assert.Equal(t, tim.Folder, info.Type)
	assert.Equal(t, "a", info.Title)

	for i, d := range docs {
		info, ok := f.Item("course/" + d.Path)
		require.True(t, ok, d.Path)
		assert.Equal(t, tim.Document, info.Type)
		assert.Equal(t, d.Title, info.Title)
		assert.Equal(t, info.ID, res.IDs[i])
	}
}

func TestSyncReusesExistingItems(t *testing.T) {
	f := newFake()
	id := f.AddDocument("course/a/b", "Old", "")

	res, err := New(f, "course").Sync(context.Background(), []Document{{Path: "a/b", Title: "New"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, res.IDs)
	assert.Empty(t, f.CallsOf(timtest.OpCreate))

	info, _ := f.Item("course/a/b")
	assert.Equal(t, "New", info.Title)
}

func TestSyncConflicts(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  error
	}{
		{"same document twice", []string{"x", "x"}, ErrItemNameConflict},
		{"document and folder", []string{"x", "x/y"}, ErrItemTypeConflict},
		{"nested name conflict", []string{"a/x", "a/x"}, ErrItemNameConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var docs []Document
			for _, p := range tt.paths {
				docs = append(docs, Document{Path: p, Title: p})
			}
			_, err := New(newFake(), "course").Sync(context.Background(), docs)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSyncRemoteTypeMismatch(t *testing.T) {
	f := newFake()
	f.AddDocument("course/a", "A", "")

	_, err := New(f, "course").Sync(context.Background(), []Document{{Path: "a/b", Title: "B"}})
	var typeErr *tim.ItemTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, tim.Folder, typeErr.Want)
	assert.Empty(t, f.CallsOf(timtest.OpCreate))
}

func TestSyncStopsOnStoreError(t *testing.T) {
	f := newFake()
	f.FailOn(timtest.OpCreate, "course/a", assert.AnError)

	_, err := New(f, "course").Sync(context.Background(), []Document{{Path: "a/b"}, {Path: "c"}})
	require.ErrorIs(t, err, assert.AnError)
	_, ok := f.Item("course/a/b")
	assert.False(t, ok)
}

var pathPool = []string{"a", "b", "a/b", "a/c", "a/b/c", "b/x", "c/d/e", "c/d/f", "index"}

func conflicting(paths []string) bool {
	for i, p := range paths {
		for j, q := range paths {
			if i != j && (p == q || strings.HasPrefix(q, p+"/")) {
				return true
			}
		}
	}
	return false
}

func TestSyncProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every document gets a distinct id unless paths conflict", prop.ForAll(
		func(picks []int) bool {
			paths := make([]string, len(picks))
			docs := make([]Document, len(picks))
			for i, n := range picks {
				paths[i] = pathPool[n]
				docs[i] = Document{Path: paths[i], Title: paths[i]}
			}

			f := newFake()
			res, err := New(f, "course", WithConcurrency(3)).Sync(context.Background(), docs)
			if conflicting(paths) {
				return err != nil
			}
			if err != nil {
				return false
			}
			seen := map[int64]bool{}
			for i, id := range res.IDs {
				info, ok := f.Item("course/" + paths[i])
				if !ok || info.ID != id || info.Type != tim.Document || seen[id] {
					return false
				}
				seen[id] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(pathPool)-1)),
	))

	properties.TestingRun(t)
}
