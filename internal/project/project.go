// Package project locates a timsync project on disk and enumerates its
// source files.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/files"
)

// SiteDataFile holds the user data published as `site` to templates.
const SiteDataFile = "_config.yml"

const maxSearchDepth = 10

// ErrNotFound is returned by Resolve when no ancestor holds a config.
var ErrNotFound = errors.New("project not found")

// Project is an initialized project directory.
type Project struct {
	FS     afero.Fs
	Root   string
	Config *config.Config
}

// Resolve finds the project containing dir. The directory itself and up to
// nine of its parents are checked for .timsync/config.toml; a config that
// fails to parse is logged and the search continues upwards.
func Resolve(fsys afero.Fs, dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if ok, err := afero.IsDir(fsys, dir); err != nil || !ok {
		return nil, fmt.Errorf("the given path is not a directory or does not exist: %s", dir)
	}

	cur := dir
	for range maxSearchDepth {
		path := config.Path(cur)
		if ok, _ := afero.Exists(fsys, path); ok {
			cfg, err := config.Read(fsys, path)
			if err == nil {
				return &Project{FS: fsys, Root: cur, Config: cfg}, nil
			}
			log.WithError(err).Warnf("Could not read the config file at %s", path)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return nil, fmt.Errorf("%w: could not find a valid TIMSync project in %s or its parents. Is the project initialized or are you in the correct directory?", ErrNotFound, dir)
}

// ConfigPath returns the location of the project config.
func (p *Project) ConfigPath() string { return config.Path(p.Root) }

// SiteDataPath returns the location of _config.yml.
func (p *Project) SiteDataPath() string { return filepath.Join(p.Root, SiteDataFile) }

// HistoryPath returns the location of the sync history database.
func (p *Project) HistoryPath() string { return filepath.Join(p.Root, config.Dir, "history.db") }

// SaveConfig writes the current config back to disk.
func (p *Project) SaveConfig() error { return p.Config.Write(p.FS, p.ConfigPath()) }

// Files walks the project tree and returns every candidate source file in
// lexical order. Hidden entries and entries matched by the ignore file are
// skipped, directories included.
func (p *Project) Files() ([]*files.File, error) {
	ignore, err := LoadIgnore(p.FS, p.Root)
	if err != nil {
		return nil, err
	}

	var out []*files.File
	err = afero.Walk(p.FS, p.Root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == p.Root {
			return nil
		}
		rel, err := filepath.Rel(p.Root, path)
		if err != nil {
			return err
		}
		if files.IsHidden(info.Name()) || ignore.Match(filepath.ToSlash(rel)) {
			log.WithField("path", rel).Debug("project: skipping")
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			out = append(out, files.New(p.FS, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project %s: %w", p.Root, err)
	}
	return out, nil
}
