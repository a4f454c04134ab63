package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 2, cfg.Sync.RetryMax)
	assert.Equal(t, 0.0, cfg.Sync.RequestsPerSecond)
	assert.Equal(t, 60*time.Second, cfg.Sync.Timeout.Duration)
	assert.Empty(t, cfg.Targets)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	tomlContent := `
[project]
min_version = "0.2.0"

[sync]
concurrency = 4
requests_per_second = 10.5
timeout = "15s"

[targets.default]
host = "https://tim.jyu.fi"
folder_root = "kurssit/tie/kurssi"
username = "bot"
password = "secret"

[targets.staging]
host = "https://tim-staging.example"
folder_root = "test/kurssi"
username = "bot"
password_source = "env"
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(tomlContent), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", cfg.Project.MinVersion)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 10.5, cfg.Sync.RequestsPerSecond)
	assert.Equal(t, 15*time.Second, cfg.Sync.Timeout.Duration)
	// Defaults should still be set for fields not specified in TOML
	assert.Equal(t, 2, cfg.Sync.RetryMax)

	require.Len(t, cfg.Targets, 2)
	target, err := cfg.Target("default")
	require.NoError(t, err)
	assert.Equal(t, "kurssit/tie/kurssi", target.FolderRoot)
	assert.Equal(t, "secret", target.Password)
	assert.Equal(t, "env", cfg.Targets["staging"].PasswordSource)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.NotNil(t, cfg.Targets)
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("[invalid toml..."), 0644))

	_, err := Load(tmpFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestSaveAndLoad(t *testing.T) {
	path := Path(t.TempDir())
	cfg := DefaultConfig()
	cfg.Sync.Timeout = Duration{90 * time.Second}
	cfg.SetTarget("default", Target{Host: DefaultHost, FolderRoot: "a/b", Username: "u", Password: "p"})
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestTargets(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.Target("default")
	require.ErrorIs(t, err, ErrUnknownTarget)
	assert.Contains(t, err.Error(), "timsync target add")

	cfg.SetTarget("x", Target{Host: DefaultHost, FolderRoot: "f", Username: "u", Password: "p"})
	require.NoError(t, cfg.RemoveTarget("x"))
	assert.ErrorIs(t, cfg.RemoveTarget("x"), ErrUnknownTarget)
}

func TestValidate(t *testing.T) {
	good := Target{Host: DefaultHost, FolderRoot: "f", Username: "u"}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Sync.Concurrency = 0 }},
		{"negative retries", func(c *Config) { c.Sync.RetryMax = -1 }},
		{"negative rate", func(c *Config) { c.Sync.RequestsPerSecond = -1 }},
		{"bad min version", func(c *Config) { c.Project.MinVersion = "one" }},
		{"relative host", func(c *Config) { c.SetTarget("t", Target{Host: "tim.jyu.fi", FolderRoot: "f", Username: "u"}) }},
		{"empty folder", func(c *Config) { c.SetTarget("t", Target{Host: DefaultHost, FolderRoot: "/", Username: "u"}) }},
		{"empty user", func(c *Config) { c.SetTarget("t", Target{Host: DefaultHost, FolderRoot: "f"}) }},
		{"bad password source", func(c *Config) {
			bad := good
			bad.PasswordSource = "keyring"
			c.SetTarget("t", bad)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SetTarget("ok", good)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.CheckVersion("0.0.1"))

	cfg.Project.MinVersion = "1.2.0"
	assert.NoError(t, cfg.CheckVersion("1.2.0"))
	assert.NoError(t, cfg.CheckVersion("v1.3.0"))
	assert.NoError(t, cfg.CheckVersion("dev"))
	assert.ErrorIs(t, cfg.CheckVersion("1.1.9"), ErrVersionTooOld)
}

func TestResolvePassword(t *testing.T) {
	pw, err := ResolvePassword(Target{Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	_, err = ResolvePassword(Target{})
	assert.Error(t, err)

	t.Setenv("MY_TIM_PASSWORD", "from-env")
	pw, err = ResolvePassword(Target{PasswordSource: "env", PasswordEnv: "MY_TIM_PASSWORD"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)

	t.Setenv(DefaultPasswordEnv, "")
	_, err = ResolvePassword(Target{PasswordSource: "env"})
	assert.Error(t, err)

	_, err = ResolvePassword(Target{PasswordSource: "vault"})
	assert.Error(t, err)
}
