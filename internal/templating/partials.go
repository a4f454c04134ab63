package templating

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// TemplatesDir holds the project's partial templates.
const TemplatesDir = "_templates"

// LoadPartials reads every file below the _templates folder of the project.
// A file is registered under its slash separated path relative to the
// folder, both with and without its extension ("nav/menu.md" and
// "nav/menu"). A missing folder yields no partials.
func LoadPartials(fsys afero.Fs, projectDir string) (map[string]string, error) {
	root := filepath.Join(projectDir, TemplatesDir)
	partials := map[string]string{}
	if ok, _ := afero.DirExists(fsys, root); !ok {
		return partials, nil
	}
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		partials[name] = string(data)
		if bare := strings.TrimSuffix(name, filepath.Ext(name)); bare != name {
			if _, taken := partials[bare]; !taken {
				partials[bare] = string(data)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return partials, nil
}
