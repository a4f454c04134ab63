package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"
)

// Project layout constants.
const (
	Dir           = ".timsync"
	FileName      = "config.toml"
	DefaultHost   = "https://tim.jyu.fi"
	DefaultTarget = "default"
)

var (
	// ErrUnknownTarget is returned by Target for names not in the config.
	ErrUnknownTarget = errors.New("unknown sync target")
	// ErrVersionTooOld means the project needs a newer timsync.
	ErrVersionTooOld = errors.New("timsync version too old for this project")
	// ErrInvalid wraps every Validate failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Config represents .timsync/config.toml.
type Config struct {
	Project ProjectConfig     `toml:"project"`
	Sync    SyncConfig        `toml:"sync"`
	Targets map[string]Target `toml:"targets"`
}

// ProjectConfig holds project wide settings.
type ProjectConfig struct {
	MinVersion string `toml:"min_version,omitempty"`
}

// SyncConfig tunes the remote calls of a sync run.
type SyncConfig struct {
	Concurrency       int      `toml:"concurrency"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	RetryMax          int      `toml:"retry_max"`
	Timeout           Duration `toml:"timeout"`
}

// Target is a remote folder documents are synchronized to.
type Target struct {
	Host       string `toml:"host"`
	FolderRoot string `toml:"folder_root"`
	Username   string `toml:"username"`
	Password   string `toml:"password,omitempty"`
	// PasswordSource is "config" (default) or "env".
	PasswordSource string `toml:"password_source,omitempty"`
	PasswordEnv    string `toml:"password_env,omitempty"`
}

// Duration is a time.Duration written as a string ("60s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Concurrency: 8,
			RetryMax:    2,
			Timeout:     Duration{60 * time.Second},
		},
		Targets: map[string]Target{},
	}
}

// Path returns the config file location inside a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, Dir, FileName)
}

// Load reads the config at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	return Read(afero.NewOsFs(), path)
}

// Read is Load on an arbitrary filesystem.
func Read(fsys afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if cfg.Targets == nil {
		cfg.Targets = map[string]Target{}
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	return c.Write(afero.NewOsFs(), path)
}

// Write is Save on an arbitrary filesystem. The file is readable by the
// owner only since it may hold a password.
func (c *Config) Write(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Encode writes the config as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Validate checks value ranges and every target.
func (c *Config) Validate() error {
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("%w: sync.concurrency must be at least 1, got %d", ErrInvalid, c.Sync.Concurrency)
	}
	if c.Sync.RetryMax < 0 {
		return fmt.Errorf("%w: sync.retry_max must not be negative", ErrInvalid)
	}
	if c.Sync.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: sync.requests_per_second must not be negative", ErrInvalid)
	}
	if c.Project.MinVersion != "" {
		if _, err := semver.NewVersion(c.Project.MinVersion); err != nil {
			return fmt.Errorf("%w: project.min_version %q: %v", ErrInvalid, c.Project.MinVersion, err)
		}
	}
	for name, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: target %s: %v", ErrInvalid, name, err)
		}
	}
	return nil
}

// Validate checks that the target has a usable host, folder and user.
func (t Target) Validate() error {
	u, err := url.Parse(t.Host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("host %q is not an absolute URL", t.Host)
	}
	if strings.Trim(t.FolderRoot, "/") == "" {
		return errors.New("folder_root is empty")
	}
	if t.Username == "" {
		return errors.New("username is empty")
	}
	switch t.PasswordSource {
	case "", "config", "env":
	default:
		return fmt.Errorf("unknown password_source %q", t.PasswordSource)
	}
	return nil
}

// Target returns the named target.
func (c *Config) Target(name string) (Target, error) {
	t, ok := c.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: could not find sync target %s. Use `timsync target add` to add the target", ErrUnknownTarget, name)
	}
	return t, nil
}

// SetTarget adds or replaces a target.
func (c *Config) SetTarget(name string, t Target) {
	if c.Targets == nil {
		c.Targets = map[string]Target{}
	}
	c.Targets[name] = t
}

// RemoveTarget deletes a target.
func (c *Config) RemoveTarget(name string) error {
	if _, ok := c.Targets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	delete(c.Targets, name)
	return nil
}

// CheckVersion fails when the project requires a newer timsync than
// current. Development builds with a non semver version always pass.
func (c *Config) CheckVersion(current string) error {
	if c.Project.MinVersion == "" {
		return nil
	}
	minimum, err := semver.NewVersion(c.Project.MinVersion)
	if err != nil {
		return fmt.Errorf("%w: project.min_version %q: %v", ErrInvalid, c.Project.MinVersion, err)
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return nil
	}
	if cur.LessThan(minimum) {
		return fmt.Errorf("%w: the project requires %s, this is %s", ErrVersionTooOld, minimum, cur)
	}
	return nil
}
