package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Fingerprint(""))
	assert.Len(t, Fingerprint("# Hello"), 40)
}

func TestApplyLayout(t *testing.T) {
	markup := "# Hello\n"
	got := Apply(markup)
	want := "``` {settings=\"timsync\"}\nhash: " + Fingerprint(markup) + "\n```\n\n\n# Hello\n"
	assert.Equal(t, want, got)
}

func TestRoundTrip(t *testing.T) {
	markup := "#- {area=\"a\"}\n\nSome text with ``` fences ```\n"
	uploaded := Apply(markup)

	fp, ok := Extract(uploaded)
	require.True(t, ok)
	assert.Equal(t, Fingerprint(markup), fp)
	assert.True(t, Matches(uploaded, markup))
}

func TestMatchesDetectsChange(t *testing.T) {
	uploaded := Apply("old text")
	assert.False(t, Matches(uploaded, "new text"))
}

func TestExtractMissingOrBroken(t *testing.T) {
	_, ok := Extract("# No stamp here")
	assert.False(t, ok)

	_, ok = Extract("``` {settings=\"timsync\"}\nhash: [\n```\n")
	assert.False(t, ok)

	_, ok = Extract("``` {settings=\"other\"}\nhash: abc\n```\n")
	assert.False(t, ok)
}

func TestExtractToleratesServerWhitespace(t *testing.T) {
	remote := "```   {settings=\"timsync\" }\nhash: abc123\n```\n\nbody"
	fp, ok := Extract(remote)
	require.True(t, ok)
	assert.Equal(t, "abc123", fp)
}
