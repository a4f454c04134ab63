package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/globalctx"
)

const gitignoreEntry = "# TIMSync tool\n.timsync\n"

var (
	ErrNotADirectory      = errors.New("not a directory")
	ErrAlreadyInitialized = errors.New("project already initialized")
)

// InitOptions controls Init.
type InitOptions struct {
	// Force removes an existing .timsync directory first.
	Force bool
	// Target, when set, is stored as the default sync target.
	Target *config.Target
}

// Init turns dir into a project: it writes .timsync/config.toml, keeps the
// config folder out of git and creates _config.yml and the ignore file when
// they are missing. Existing user files are never overwritten.
func Init(fsys afero.Fs, dir string, opts InitOptions) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if ok, _ := afero.IsDir(fsys, dir); !ok {
		return nil, fmt.Errorf("%w: the path %s is not a directory", ErrNotADirectory, dir)
	}

	cfgDir := filepath.Join(dir, config.Dir)
	if ok, _ := afero.Exists(fsys, cfgDir); ok {
		if !opts.Force {
			return nil, fmt.Errorf("%w: the project %s is already initialized. Use --force to recreate the configuration", ErrAlreadyInitialized, dir)
		}
		if err := fsys.RemoveAll(cfgDir); err != nil {
			return nil, fmt.Errorf("remove %s: %w", cfgDir, err)
		}
	}

	cfg := config.DefaultConfig()
	if opts.Target != nil {
		cfg.SetTarget(config.DefaultTarget, *opts.Target)
	}
	p := &Project{FS: fsys, Root: dir, Config: cfg}
	if err := p.SaveConfig(); err != nil {
		return nil, err
	}

	if err := appendGitignore(fsys, filepath.Join(dir, ".gitignore")); err != nil {
		return nil, err
	}
	if err := writeIfMissing(fsys, p.SiteDataPath(), globalctx.DefaultSiteData); err != nil {
		return nil, err
	}
	if err := writeIfMissing(fsys, filepath.Join(dir, IgnoreFileName), DefaultIgnore); err != nil {
		return nil, err
	}
	log.WithField("root", dir).Debug("project: initialized")
	return p, nil
}

func appendGitignore(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	existing := string(data)
	if strings.Contains(existing, config.Dir) {
		return nil
	}
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	if err := afero.WriteFile(fsys, path, []byte(existing+gitignoreEntry), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeIfMissing(fsys afero.Fs, path, content string) error {
	if ok, _ := afero.Exists(fsys, path); ok {
		return nil
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
