package server

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docrag/internal/usecase"
)

// debounceDelay coalesces bursts of filesystem events into one rebuild.
// Editors often write a file as create-temp plus rename, which fires
// several events for a single save.
const debounceDelay = 2 * time.Second

// Watcher triggers incremental rebuilds when files under the folder change.
type Watcher struct {
	ingestor *usecase.Ingestor
	folder   string
	ignore   map[string]bool
}

func NewWatcher(ingestor *usecase.Ingestor, folder string, ignoreDirs []string) *Watcher {
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}
	return &Watcher{ingestor: ingestor, folder: folder, ignore: ignore}
}

// Run watches until ctx is cancelled. Watches are registered recursively;
// directories created later are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.folder); err != nil {
		return err
	}
	log.Printf("watching %s for changes", w.folder)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						log.Printf("failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if timer == nil {
					timer = time.NewTimer(debounceDelay)
					timerCh = timer.C
				} else {
					timer.Reset(debounceDelay)
				}
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.rebuild(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	result, err := w.ingestor.Rebuild(ctx, w.folder, false, nil)
	if err != nil {
		log.Printf("auto-rebuild failed: %v", err)
		return
	}
	if result.FilesIndexed > 0 || result.FilesRemoved > 0 {
		log.Printf("auto-rebuild: %d indexed, %d removed, %d chunks",
			result.FilesIndexed, result.FilesRemoved, result.ChunksCreated)
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.folder, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[part] {
			return true
		}
	}
	return false
}
