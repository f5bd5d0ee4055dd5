package chunker

import (
	"docrag/internal/domain"
)

// CharChunker splits text into fixed-size character windows with overlap.
// The walk is deterministic: stride = size - overlap, each chunk takes size
// runes from the current offset, the final chunk takes whatever remains.
type CharChunker struct {
	size    int
	overlap int
}

// NewCharChunker validates the chunking parameters and returns a chunker.
func NewCharChunker(size, overlap int) (*CharChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, &domain.ChunkingError{Size: size, Overlap: overlap}
	}
	return &CharChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping chunks. Offsets are rune offsets so
// multi-byte text chunks cleanly. Empty text yields zero chunks; text no
// longer than one chunk yields a single chunk holding all of it.
func (c *CharChunker) Chunk(docPath, text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil, nil
	}

	stride := c.size - c.overlap
	var chunks []domain.Chunk

	for start := 0; start < total; start += stride {
		end := start + c.size
		if end > total {
			end = total
		}

		chunks = append(chunks, domain.Chunk{
			DocPath: docPath,
			Seq:     len(chunks),
			Start:   start,
			End:     end,
			Text:    string(runes[start:end]),
		})

		if end == total {
			break
		}
	}

	return chunks, nil
}
