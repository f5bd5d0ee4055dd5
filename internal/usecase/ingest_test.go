package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/index"
	"docrag/internal/domain"
)

type pipeline struct {
	root     string
	ingestor *Ingestor
	index    *index.BoltIndex
	embedder *embedding.MockEmbedder
}

func newPipeline(t *testing.T, chunkSize, overlap int) *pipeline {
	t.Helper()

	root := t.TempDir()
	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	chk, err := chunker.NewCharChunker(chunkSize, overlap)
	if err != nil {
		t.Fatal(err)
	}

	emb := embedding.NewMockEmbedder(16)
	ing := NewIngestor(fs.NewWalker([]string{".git"}), extract.NewExtractor(), chk, emb, idx)

	return &pipeline{root: root, ingestor: ing, index: idx, embedder: emb}
}

func (p *pipeline) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(p.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (p *pipeline) rebuild(t *testing.T, full bool) *Result {
	t.Helper()
	res, err := p.ingestor.Rebuild(context.Background(), p.root, full, nil)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRebuildEmptyFolder(t *testing.T) {
	p := newPipeline(t, 100, 20)

	res := p.rebuild(t, true)
	if res.FilesIndexed != 0 {
		t.Errorf("expected 0 files indexed, got %d", res.FilesIndexed)
	}
	if p.index.Count() != 0 {
		t.Errorf("expected empty index, got %d entries", p.index.Count())
	}

	// Searching the empty index is not an error.
	matches, err := p.index.Search(make([]float32, 16), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestRebuildIndexesDocuments(t *testing.T) {
	p := newPipeline(t, 1000, 200)

	p.write(t, "doc.txt", strings.Repeat("x", 2500))
	res := p.rebuild(t, true)

	if res.FilesIndexed != 1 {
		t.Fatalf("expected 1 file indexed, got %d", res.FilesIndexed)
	}
	if res.ChunksCreated != 3 {
		t.Errorf("2500 chars at size=1000 overlap=200 must give 3 chunks, got %d", res.ChunksCreated)
	}
	if p.index.Count() != 3 {
		t.Errorf("expected 3 entries, got %d", p.index.Count())
	}
}

func TestRebuildSkipsUnsupportedAndIgnored(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "keep.md", "some markdown")
	p.write(t, "binary.png", "not text")
	p.write(t, ".git/config", "vcs noise")

	res := p.rebuild(t, true)
	if res.FilesIndexed != 1 {
		t.Errorf("expected 1 file indexed, got %d", res.FilesIndexed)
	}
}

func TestIncrementalSkipsUnchanged(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "a.txt", "first document")
	p.write(t, "b.txt", "second document")
	p.rebuild(t, true)

	res := p.rebuild(t, false)
	if res.FilesIndexed != 0 {
		t.Errorf("expected 0 files re-indexed, got %d", res.FilesIndexed)
	}
	if res.FilesSkipped != 2 {
		t.Errorf("expected 2 files skipped, got %d", res.FilesSkipped)
	}
}

func TestIncrementalReplacesModified(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "a.txt", "original content")
	p.rebuild(t, true)

	p.write(t, "a.txt", "completely new content that replaces the old")
	res := p.rebuild(t, false)

	if res.FilesIndexed != 1 {
		t.Fatalf("expected 1 file re-indexed, got %d", res.FilesIndexed)
	}

	// No stale chunk may survive for the modified document.
	vec, err := p.embedder.Embed(context.Background(), []string{"original content"})
	if err != nil {
		t.Fatal(err)
	}
	matches, err := p.index.Search(vec[0], 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.Chunk.Text == "original content" {
			t.Error("stale entry for modified document still searchable")
		}
	}
}

func TestIncrementalRemovesDeleted(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "stays.txt", "this one stays")
	p.write(t, "goes.txt", "this one goes")
	p.rebuild(t, true)

	if err := os.Remove(filepath.Join(p.root, "goes.txt")); err != nil {
		t.Fatal(err)
	}

	res := p.rebuild(t, false)
	if res.FilesRemoved != 1 {
		t.Errorf("expected 1 file removed, got %d", res.FilesRemoved)
	}

	for _, d := range p.index.Docs() {
		if filepath.Base(d.Path) == "goes.txt" {
			t.Error("deleted document still recorded in index")
		}
	}

	vec, _ := p.embedder.Embed(context.Background(), []string{"this one goes"})
	matches, err := p.index.Search(vec[0], 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if filepath.Base(m.Chunk.DocPath) == "goes.txt" {
			t.Error("search returned metadata for a deleted document")
		}
	}
}

func TestRebuildMissingFolderPreservesIndex(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "a.txt", "indexed content")
	p.rebuild(t, true)
	before := p.index.Count()

	// A vanished folder (unmounted share, typo) must fail the rebuild,
	// not read as "every document was deleted".
	missing := filepath.Join(t.TempDir(), "gone")
	_, err := p.ingestor.Rebuild(context.Background(), missing, false, nil)
	if err == nil {
		t.Fatal("expected an error for a missing folder")
	}
	if p.index.Count() != before {
		t.Errorf("rebuild of a missing folder mutated the index: %d -> %d entries", before, p.index.Count())
	}
}

func TestRebuildRejectedWhileInFlight(t *testing.T) {
	p := newPipeline(t, 100, 20)

	// Simulate an in-flight rebuild by holding the guard.
	if !p.ingestor.busy.CompareAndSwap(false, true) {
		t.Fatal("guard unexpectedly held")
	}
	defer p.ingestor.busy.Store(false)

	_, err := p.ingestor.Rebuild(context.Background(), p.root, false, nil)
	if !errors.Is(err, domain.ErrRebuildInFlight) {
		t.Fatalf("expected ErrRebuildInFlight, got %v", err)
	}
}

func TestCancelledRebuildLeavesIndexUntouched(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "a.txt", "indexed before cancellation")
	p.rebuild(t, true)
	before := p.index.Count()

	p.write(t, "b.txt", "arrives after cancellation")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ingestor.Rebuild(ctx, p.root, false, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.index.Count() != before {
		t.Errorf("cancelled rebuild mutated the index: %d -> %d entries", before, p.index.Count())
	}
}

func TestRebuildExtractionFailureIsIsolated(t *testing.T) {
	p := newPipeline(t, 100, 20)

	p.write(t, "good.txt", "readable content")
	p.write(t, "bad.pdf", "not actually a pdf")

	res := p.rebuild(t, true)
	if res.FilesIndexed != 1 {
		t.Errorf("expected the good file indexed, got %d", res.FilesIndexed)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the corrupt file")
	}
}

func TestRebuildDeterministic(t *testing.T) {
	p := newPipeline(t, 50, 10)

	p.write(t, "doc.txt", strings.Repeat("deterministic chunking ", 30))
	p.rebuild(t, true)
	first := p.index.Docs()

	p.rebuild(t, true)
	second := p.index.Docs()

	if len(first) != len(second) {
		t.Fatalf("document counts differ across identical rebuilds")
	}
	for path, d := range first {
		if second[path].Hash != d.Hash || second[path].Chunks != d.Chunks {
			t.Errorf("rebuild of unchanged input produced different result for %s", path)
		}
	}
}
