package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// newFileWatcher watches every directory under each site's input_dir.
// fsnotify is not recursive, so directories created later are added as they appear.
func (s *Scheduler) newFileWatcher() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, key := range s.siteKeys {
		dir := filepath.Clean(s.appCfg.Sites[key].InputDir)
		if err := s.addTree(fw, dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s for site '%s': %w", dir, key, err)
		}
	}
	return fw, nil
}

func (s *Scheduler) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if s.isOutputPath(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// siteForChange maps a file event to the site whose sources it touches.
// Attribute-only changes and writes into output directories are ignored.
func (s *Scheduler) siteForChange(fw *fsnotify.Watcher, ev fsnotify.Event) string {
	if ev.Op == fsnotify.Chmod || s.isOutputPath(ev.Name) {
		return ""
	}

	var key string
	for _, k := range s.siteKeys {
		if within(filepath.Clean(s.appCfg.Sites[k].InputDir), ev.Name) {
			key = k
			break
		}
	}
	if key == "" {
		return ""
	}

	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := s.addTree(fw, ev.Name); err != nil {
				s.log.Warnf("Failed to watch new directory %s: %v", ev.Name, err)
			}
		}
	}
	return key
}

func (s *Scheduler) isOutputPath(path string) bool {
	for _, k := range s.siteKeys {
		if within(filepath.Clean(s.appCfg.Sites[k].OutputDir), path) {
			return true
		}
	}
	return false
}

// within reports whether path is dir or lies below it
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
