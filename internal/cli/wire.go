package cli

import (
	"fmt"
	"os"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/index"
	"docrag/internal/adapter/llm"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// openIndex opens the persisted index under the document folder.
func openIndex(dir string) (*index.BoltIndex, error) {
	if err := config.EnsureIndexDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	idx, err := index.Open(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return idx, nil
}

// openExistingIndex opens the index for read-side commands, which refuse to
// run against a folder that has never been indexed.
func openExistingIndex(dir string) (*index.BoltIndex, error) {
	if _, err := os.Stat(config.IndexDBPath(dir)); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w in %s: run 'docrag rebuild' first", domain.ErrNoIndex, dir)
	}
	return openIndex(dir)
}

// newEmbedder builds the embedding client from config. The "mock" model name
// selects the deterministic offline embedder.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	if cfg.Embedding.Model == "mock" {
		return embedding.NewMockEmbedder(64), nil
	}
	return embedding.NewClient(cfg.Embedding)
}

// newIngestor assembles the full indexing pipeline around an open index.
func newIngestor(cfg *config.Config, idx port.VectorIndex) (*usecase.Ingestor, error) {
	chk, err := chunker.NewCharChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	walker := fs.NewWalker(cfg.IgnoreDirs)
	return usecase.NewIngestor(walker, extract.NewExtractor(), chk, emb, idx), nil
}

// newRetriever assembles the query-side pipeline around an open index.
func newRetriever(cfg *config.Config, idx port.VectorIndex) (*usecase.Retriever, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewRetriever(emb, idx, cfg.Retrieve.MaxDistance), nil
}

// newChat assembles retrieval plus generation.
func newChat(cfg *config.Config, idx port.VectorIndex) (*usecase.Chat, error) {
	retriever, err := newRetriever(cfg, idx)
	if err != nil {
		return nil, err
	}
	generator := llm.NewClient(cfg.Chat, cfg.Embedding.BaseURL, cfg.Embedding.APIKeyEnv)
	return usecase.NewChat(retriever, generator, cfg.Retrieve.TopK), nil
}
