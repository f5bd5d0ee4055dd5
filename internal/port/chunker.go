package port

import "docrag/internal/domain"

// Chunker splits extracted text into overlapping segments. Chunking is a
// pure function of (text, size, overlap): identical input always yields an
// identical chunk sequence, which is what makes rebuilds stable.
type Chunker interface {
	Chunk(docPath, text string) ([]domain.Chunk, error)
}
