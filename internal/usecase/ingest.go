package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Ingestor drives the ingestion pipeline: discovery, extraction, chunking,
// embedding, and the index mutation. Every rebuild trigger (CLI, HTTP, the
// folder watcher) funnels through Rebuild, so the resulting index is
// identical regardless of origin. Only one rebuild may run at a time.
type Ingestor struct {
	walker    port.FileWalker
	extractor port.Extractor
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex

	busy atomic.Bool
}

func NewIngestor(
	walker port.FileWalker,
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
) *Ingestor {
	return &Ingestor{
		walker:    walker,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
	}
}

// Progress reports pipeline advancement: processed and total documents in
// the current stage, plus the file being worked on.
type Progress func(processed, total int, currentFile string)

// Result summarizes a rebuild.
type Result struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesRemoved  int
	ChunksCreated int
	Warnings      []string
}

// Rebuild synchronizes the index with the folder. Incremental rebuilds skip
// unchanged documents (by content hash), replace modified ones, and remove
// deleted ones; full rebuilds regenerate every entry. All embedding happens
// before the index is touched, so a cancellation or failure mid-flight
// leaves the previously persisted index intact.
func (g *Ingestor) Rebuild(ctx context.Context, root string, full bool, progress Progress) (*Result, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrRebuildInFlight
	}
	defer g.busy.Store(false)

	if !full {
		if err := g.index.ValidateModel(g.embedder.ModelName()); err != nil {
			return nil, err
		}
	}

	files, err := g.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	existing := g.index.Docs()
	if full {
		existing = nil
	}

	result := &Result{}
	seen := make(map[string]bool)

	// Stage 1: decide what changed.
	type pending struct {
		info port.FileInfo
		hash string
	}
	var work []pending
	var removePaths []string

	for _, f := range files {
		if !g.extractor.Supported(f.Path) {
			continue
		}
		seen[f.Path] = true

		hash, err := hashFile(f.Path)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}

		if prev, ok := existing[f.Path]; ok {
			if prev.Hash == hash {
				result.FilesSkipped++
				continue
			}
			// Modified: old entries go before the new ones arrive.
			removePaths = append(removePaths, f.Path)
		}
		work = append(work, pending{info: f, hash: hash})
	}

	for path := range existing {
		if !seen[path] {
			removePaths = append(removePaths, path)
			result.FilesRemoved++
		}
	}

	// Stage 2: extract, chunk, and embed. Extraction failures are isolated
	// per document; a failed embedding batch is fatal for the whole rebuild
	// since a partially embedded corpus would silently corrupt retrieval.
	var entries []domain.Entry
	var docs []domain.Document

	for i, p := range work {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i, len(work), p.info.Path)
		}

		text, err := g.extractor.Extract(p.info.Path)
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}

		chunks, err := g.chunker.Chunk(p.info.Path, text)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			// Nothing extractable. If a previous version was indexed its
			// entries are already queued for removal.
			continue
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Text
		}
		vectors, err := g.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}

		for j, c := range chunks {
			entries = append(entries, domain.Entry{Chunk: c, Vector: vectors[j]})
		}
		docs = append(docs, domain.Document{
			Path:    p.info.Path,
			Hash:    p.hash,
			ModTime: p.info.ModTime,
			Chunks:  len(chunks),
		})
		result.FilesIndexed++
		result.ChunksCreated += len(chunks)
	}
	if progress != nil {
		progress(len(work), len(work), "")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: one atomic index mutation, persisted before returning.
	model := g.embedder.ModelName()
	dimension := g.embedder.Dimension()
	if dimension == 0 {
		// Removal-only rebuilds embed nothing; keep the recorded dimension.
		dimension = g.index.Dimension()
	}

	if full {
		if err := g.index.Build(model, dimension, entries, docs); err != nil {
			return nil, err
		}
		return result, nil
	}

	if len(removePaths) == 0 && len(entries) == 0 {
		return result, nil
	}
	if err := g.index.Update(model, dimension, removePaths, entries, docs); err != nil {
		return nil, err
	}
	return result, nil
}

// hashFile computes the sha256 content hash used for change detection.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
