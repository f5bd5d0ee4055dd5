package port

import "time"

// FileWalker discovers candidate files under a root directory.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

// FileInfo describes a discovered file.
type FileInfo struct {
	Path    string
	ModTime time.Time
	Size    int64
}
