package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewRender(t *testing.T) {
	r, err := NewPreviewRenderer(80, false)
	require.NoError(t, err)
	result, err := r.Render("Hello **world**")
	require.NoError(t, err)
	assert.Contains(t, result, "world")
}

func TestPreviewRenderSettingsBlock(t *testing.T) {
	r, err := NewPreviewRenderer(80, false)
	require.NoError(t, err)
	result, err := r.Render("``` {settings=\"\"}\nhash: abc\n```")
	require.NoError(t, err)
	assert.Contains(t, result, "hash")
}

func TestPreviewRenderParagraphMarkers(t *testing.T) {
	r, err := NewPreviewRenderer(10, false)
	require.NoError(t, err)
	result, err := r.Render("#- {area=\"intro\"}\n\n#-\nWelcome\n#- {area_end=\"intro\"}\n")
	require.NoError(t, err)
	assert.Contains(t, result, `area="intro"`)
	assert.Contains(t, result, "Welcome")
	assert.NotContains(t, result, "#-")
}

func TestPreviewRenderEmpty(t *testing.T) {
	r, err := NewPreviewRenderer(80, true)
	require.NoError(t, err)
	result, err := r.Render("")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestPreviewRenderNilRenderer(t *testing.T) {
	r := &PreviewRenderer{}
	result, err := r.Render("plain\n#-\nnext")
	require.NoError(t, err)
	assert.Equal(t, "plain\n\nnext", result)
}

func TestParagraphMarkers(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a\n#-\nb", "a\n\nb"},
		{"#- {area=\"x\" .c}\ntext", "> `{area=\"x\" .c}`\n\ntext"},
		{"```\n#-\n```", "```\n#-\n```"},
		{"``` {settings=\"\"}\n#- {x}\n```\n#-", "``` {settings=\"\"}\n#- {x}\n```\n"},
		{"#-heading", "#-heading"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParagraphMarkers(tt.in), tt.in)
	}
}
