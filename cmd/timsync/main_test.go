package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/runner"
	"github.com/JYU-DI/timsync/internal/tim"
	"github.com/JYU-DI/timsync/internal/tim/timtest"
	"github.com/JYU-DI/timsync/internal/treesync"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func useFake(t *testing.T, f *timtest.Fake) {
	t.Helper()
	orig := newStore
	newStore = func(context.Context, *config.Config, config.Target) (tim.Store, error) { return f, nil }
	t.Cleanup(func() { newStore = orig })
}

func initDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := execute(t, "init", dir, "--no-prompt")
	require.NoError(t, err)
	return dir
}

func TestVersionString(t *testing.T) {
	s := versionString()
	assert.Contains(t, s, "timsync")
	assert.Contains(t, s, version)
	assert.Contains(t, s, commit)
	assert.Contains(t, s, date)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, versionString()+"\n", out)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir, "--no-prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized TIMSync project")

	for _, name := range []string{".timsync/config.toml", ".gitignore", "_config.yml", ".timsyncignore"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = execute(t, "init", dir, "--no-prompt")
	require.ErrorIs(t, err, project.ErrAlreadyInitialized)
	assert.Equal(t, runner.ExitStructural, runner.ExitCodeFromError(err))

	_, err = execute(t, "init", dir, "--no-prompt", "--force")
	require.NoError(t, err)
}

func TestTargetCommands(t *testing.T) {
	dir := initDir(t)
	f := timtest.New()
	f.AddFolder("kurssit/demo", "Demo")
	useFake(t, f)

	out, err := execute(t, "target", "add", "default", "-C", dir, "--no-prompt",
		"--folder", "kurssit/demo", "--username", "bot", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Added sync target default")
	assert.Len(t, f.CallsOf(timtest.OpLogin), 1)

	_, err = execute(t, "target", "add", "default", "-C", dir, "--no-prompt",
		"--folder", "kurssit/demo", "--username", "bot", "--password", "pw")
	require.Error(t, err)

	_, err = execute(t, "target", "add", "broken", "-C", dir, "--no-prompt",
		"--folder", "kurssit/missing", "--username", "bot", "--password", "pw")
	require.ErrorIs(t, err, treesync.ErrSyncTargetDoesNotExist)

	out, err = execute(t, "target", "list", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "kurssit/demo")
	assert.NotContains(t, out, "broken")

	cfg, err := config.Load(config.Path(dir))
	require.NoError(t, err)
	got, err := cfg.Target("default")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHost, got.Host)

	_, err = execute(t, "target", "remove", "default", "-C", dir)
	require.NoError(t, err)
	out, err = execute(t, "target", "list", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No sync targets configured.")

	_, err = execute(t, "target", "remove", "default", "-C", dir)
	require.ErrorIs(t, err, config.ErrUnknownTarget)
}

func TestSyncAndHistory(t *testing.T) {
	dir := initDir(t)
	f := timtest.New()
	f.AddFolder("kurssit/demo", "Demo")
	useFake(t, f)

	_, err := execute(t, "target", "add", "default", "-C", dir, "--no-prompt", "--no-verify",
		"--host", "https://tim.example", "--folder", "kurssit/demo", "--username", "bot", "--password", "pw")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("---\ntitle: Home\n---\nHello"), 0o644))

	out, err := execute(t, "sync", "-C", dir, "-o", "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "default", decoded["target"])
	assert.Equal(t, float64(1), decoded["uploaded"])
	assert.Contains(t, f.Markdown("kurssit/demo/index"), "Hello")

	out, err = execute(t, "sync", "-C", dir, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| `index` | Home |")

	out, err = execute(t, "history", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "ok")
}

func TestSyncFailureExitCode(t *testing.T) {
	dir := initDir(t)
	useFake(t, timtest.New())

	_, err := execute(t, "target", "add", "default", "-C", dir, "--no-prompt", "--no-verify",
		"--folder", "kurssit/demo", "--username", "bot", "--password", "pw")
	require.NoError(t, err)

	out, err := execute(t, "sync", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, runner.ExitStructural, runner.ExitCodeFromError(err))
	assert.Contains(t, out, "does not exist in TIM")

	out, err = execute(t, "history", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestSyncUnknownTarget(t *testing.T) {
	dir := initDir(t)
	_, err := execute(t, "sync", "nope", "-C", dir)
	require.ErrorIs(t, err, config.ErrUnknownTarget)
}

func TestPreviewCommand(t *testing.T) {
	dir := initDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "guide.md"), []byte("See [home](../index.md) in {{site.title}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("home"), 0o644))

	out, err := execute(t, "preview", filepath.Join(dir, "docs", "guide.md"), "-C", dir, "--raw")
	require.NoError(t, err)
	assert.Equal(t, "See [home](/view/preview/index) in My TIM page", out)
}

func TestCommandsOutsideProject(t *testing.T) {
	_, err := execute(t, "sync", "-C", t.TempDir())
	require.ErrorIs(t, err, project.ErrNotFound)
}
