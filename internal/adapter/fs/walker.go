package fs

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/port"
)

// Walker discovers files under a root directory, skipping directories whose
// name matches an entry of the ignore set. Ignore entries may be plain names
// (".git") or glob patterns ("*.cache"). Symlinks are never followed, so a
// symlink cycle cannot cause infinite recursion.
type Walker struct {
	ignore []string
}

func NewWalker(ignoreDirs []string) *Walker {
	return &Walker{ignore: ignoreDirs}
}

func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []port.FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A nil entry means the root itself could not be statted.
			// That must fail the walk: an empty result here would make
			// an incremental rebuild treat every indexed document as
			// deleted. Unreadable entries below the root are skipped,
			// not fatal: the scan is best-effort over the corpus.
			if d == nil {
				return err
			}
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && w.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, port.FileInfo{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	})

	return files, err
}

func (w *Walker) ignored(name string) bool {
	for _, pattern := range w.ignore {
		if pattern == name {
			return true
		}
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
