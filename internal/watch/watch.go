// Package watch reruns a function whenever the project tree changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var fs = afero.NewOsFs()

// Dirs returns root and every directory below it, skipping dot directories
// such as .git and .timsync. fsnotify does not watch recursively, so each
// directory is added on its own. Underscore directories stay watched since
// templates and helpers live there.
func Dirs(root string) ([]string, error) {
	var dirs []string
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if path != root && skip(fi.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

func skip(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Run calls fn once the tree under root has been quiet for debounce after a
// change. It returns when ctx is cancelled. Errors from fn are logged and
// watching continues.
func Run(ctx context.Context, root string, debounce time.Duration, fn func(context.Context) error) error {
	dirs, err := Dirs(root)
	if err != nil {
		return fmt.Errorf("list directories: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
	}
	log.WithField("dirs", len(dirs)).Debug("watch: started")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if skip(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := fs.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						log.WithError(err).WithField("dir", ev.Name).Warn("Failed to watch new directory")
					}
				}
			}
			log.WithFields(log.Fields{"path": ev.Name, "op": ev.Op.String()}).Debug("watch: change")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("File watcher error")

		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				log.WithError(err).Error("watch: run failed")
			}
		}
	}
}
