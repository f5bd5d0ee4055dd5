package port

import "docrag/internal/domain"

// VectorIndex stores embeddings plus aligned chunk metadata and answers
// k-nearest-neighbor queries. A single writer mutates the index; readers may
// query concurrently. Every mutation is persisted before it returns.
type VectorIndex interface {
	// Build replaces the entire index with the given entries. Readers see
	// either the old or the new index, never a partial mix.
	Build(model string, dimension int, entries []domain.Entry, docs []domain.Document) error

	// Update reconciles the index incrementally in one atomic step:
	// entries belonging to removePaths (deleted or modified documents) are
	// dropped, then the new entries are appended. On an empty index the
	// model and dimension are established from the arguments.
	Update(model string, dimension int, removePaths []string, entries []domain.Entry, docs []domain.Document) error

	// Search returns the k entries nearest to the query vector, ascending
	// by distance, ties broken by insertion order. k larger than the entry
	// count returns all entries; an empty index returns an empty slice.
	Search(query []float32, k int) ([]domain.Match, error)

	// Docs returns the indexed documents keyed by path.
	Docs() map[string]domain.Document

	// Count returns the number of entries.
	Count() int

	// ModelName returns the embedding model the index was built with, or
	// "" for an empty index.
	ModelName() string

	// Dimension returns the vector dimensionality, or 0 for an empty index.
	Dimension() int

	// ValidateModel checks the configured embedding model against the one
	// the index was built with. Mixing vector spaces is detected, never
	// tolerated.
	ValidateModel(model string) error

	Close() error
}
